package series

// Writer persists a series under a logical table name.
type Writer interface {
	WriteSeries(name string, s *Series) error
}
