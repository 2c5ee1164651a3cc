package series

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const step = 5 * time.Minute

func TestInterpolate(t *testing.T) {
	Convey("Given a monotone gap with cubic support on both sides", t, func() {
		s := build(Irradiance, step, Some(0.9), Some(1), Null(), Null(), Null(), Some(5), Some(5.1))
		col, err := Interpolate(s).Column(Irradiance)
		So(err, ShouldBeNil)
		got := floats(col)

		Convey("Then the gap is filled by an increasing curve inside the bounds", func() {
			for i := 2; i <= 4; i++ {
				So(got[i], ShouldBeGreaterThan, 1)
				So(got[i], ShouldBeLessThan, 5)
				So(got[i], ShouldBeGreaterThan, got[i-1])
			}
			So(got[5], ShouldBeGreaterThan, got[4])
		})

		Convey("Then it differs from a linear fill", func() {
			So(got[2], ShouldAlmostEqual, 1.68359375, 1e-9)
			So(got[3], ShouldAlmostEqual, 3, 1e-9)
			So(got[4], ShouldAlmostEqual, 4.31640625, 1e-9)
			So(got[2], ShouldNotAlmostEqual, 2, 1e-3)
			So(got[4], ShouldNotAlmostEqual, 4, 1e-3)
		})

		Convey("Then present samples are untouched", func() {
			So(got[0], ShouldEqual, 0.9)
			So(got[6], ShouldEqual, 5.1)
		})
	})

	Convey("Given the two-knot scenario [1,null,null,null,5], below the cubic minimum", t, func() {
		s := build(Irradiance, step, Some(1), Null(), Null(), Null(), Some(5))
		col, _ := Interpolate(s).Column(Irradiance)

		Convey("Then the linear fallback applies, not a cubic curve", func() {
			So(floats(col), ShouldResemble, []float64{1, 2, 3, 4, 5})
		})
	})

	Convey("Given leading and trailing gaps", t, func() {
		s := build(Humidity, step, Null(), Some(10), Some(20), Some(30), Some(40), Null())
		col, _ := Interpolate(s).Column(Humidity)

		Convey("Then nothing is extrapolated and the edges are zero", func() {
			So(floats(col), ShouldResemble, []float64{0, 10, 20, 30, 40, 0})
		})
	})

	Convey("Given a single sample", t, func() {
		s := build(CAPE, step, Null(), Some(7), Null())
		col, _ := Interpolate(s).Column(CAPE)

		Convey("Then only that sample survives", func() {
			So(floats(col), ShouldResemble, []float64{0, 7, 0})
		})
	})

	Convey("Given an entirely null channel", t, func() {
		s := build(CAPE, step, Null(), Null())
		out := Interpolate(s)

		Convey("Then it is fully zeroed", func() {
			So(out.NullCount(), ShouldEqual, 0)
			col, _ := out.Column(CAPE)
			So(floats(col), ShouldResemble, []float64{0, 0})
		})
	})

	Convey("Given a non-monotone series", t, func() {
		s := build(WindSpeed, step, Some(0), Some(4), Null(), Some(4), Some(0), Null(), Some(2))
		col, _ := Interpolate(s).Column(WindSpeed)
		got := floats(col)

		Convey("Then a flat local extremum is not overshot", func() {
			So(got[2], ShouldAlmostEqual, 4, 1e-9)
			So(got[5], ShouldBeBetweenOrEqual, 0, 2)
		})
	})

	Convey("Given an empty series", t, func() {
		So(Interpolate(New(Temperature)).Len(), ShouldEqual, 0)
	})
}
