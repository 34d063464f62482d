package preprocess_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/Brownie44l1/fer-emotion/internal/model"
	"github.com/Brownie44l1/fer-emotion/internal/preprocess"
	. "github.com/smartystreets/goconvey/convey"
)

// halves paints the left half white and the right half black.
func halves(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if x < w/2 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestGrayscale(t *testing.T) {
	Convey("Given a 96x96 white-and-black image", t, func() {
		img := halves(96, 96)

		Convey("When converting to a 48x48 grid", func() {
			out := preprocess.Grayscale(img, 48)

			Convey("Then the grid is 48x48 with values in [0, 1]", func() {
				So(len(out), ShouldEqual, 48)
				for _, row := range out {
					So(len(row), ShouldEqual, 48)
					for _, v := range row {
						So(float64(v), ShouldBeBetweenOrEqual, 0.0, 1.0)
					}
				}
				So(out[10][2], ShouldAlmostEqual, 1.0, 0.01)
				So(out[10][45], ShouldAlmostEqual, 0.0, 0.01)
			})
		})
	})
}

func TestFace(t *testing.T) {
	Convey("Given an image with a dark right half", t, func() {
		img := halves(100, 60)

		Convey("When cropping the right half as the face", func() {
			face := preprocess.Face(img, image.Rect(50, 0, 100, 60))

			Convey("Then every pixel is dark", func() {
				So(len(face), ShouldEqual, 48)
				for _, row := range face {
					for _, v := range row {
						So(float64(v), ShouldAlmostEqual, 0.0, 0.01)
					}
				}
			})
		})

		Convey("When the box lies outside the image", func() {
			So(preprocess.Face(img, image.Rect(200, 200, 260, 260)), ShouldBeNil)
		})

		Convey("When the box overhangs an edge", func() {
			cropped := preprocess.Crop(img, image.Rect(80, 40, 140, 100))
			So(cropped.Bounds().Dx(), ShouldEqual, 20)
			So(cropped.Bounds().Dy(), ShouldEqual, 20)
		})
	})
}

func TestRows(t *testing.T) {
	Convey("Given a flat slice", t, func() {
		So(preprocess.Rows([]float32{1, 2, 3, 4, 5, 6}, 3), ShouldResemble, model.Image{{1, 2, 3}, {4, 5, 6}})
		So(len(preprocess.Rows(make([]float32, 48*48), 48)), ShouldEqual, 48)
		So(preprocess.Rows(nil, 48), ShouldBeNil)
	})
}
