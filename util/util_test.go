package util

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/streamctl/streamctl/filesystem"
)

func TestQuantify(t *testing.T) {
	Convey("Quantify", t, func() {
		So(Quantify(1, "track", "tracks"), ShouldEqual, "1 track")
		So(Quantify(3, "track", "tracks"), ShouldEqual, "3 tracks")
	})
}

func TestCapitalize(t *testing.T) {
	Convey("Capitalize", t, func() {
		So(Capitalize("buffering"), ShouldEqual, "Buffering")
		So(Capitalize(""), ShouldEqual, "")
	})
}

func TestOrdered(t *testing.T) {
	Convey("Max, Min and Clamp", t, func() {
		So(Max(1, 5, 2), ShouldEqual, 5)
		So(Min(1, 5, 2), ShouldEqual, 1)
		So(Max[int](), ShouldEqual, 0)
		So(Clamp(120, 0, 100), ShouldEqual, 100)
		So(Clamp(-0.5, 0, 1), ShouldEqual, 0)
		So(Clamp(0.3, 0, 1), ShouldEqual, 0.3)
	})
}

func TestDelete(t *testing.T) {
	filesystem.SetMemMapFs()
	defer filesystem.SetOsFs()

	Convey("Delete removes files and trees", t, func() {
		fs := filesystem.API()
		So(fs.WriteFile("/tmp/a/b/c.txt", []byte("x"), 0o600), ShouldBeNil)
		So(fs.WriteFile("/tmp/d.txt", []byte("x"), 0o600), ShouldBeNil)

		So(Delete("/tmp/d.txt"), ShouldBeNil)
		So(Delete("/tmp/a"), ShouldBeNil)

		exists, _ := fs.Exists("/tmp/a/b/c.txt")
		So(exists, ShouldBeFalse)
		So(Delete("/tmp/missing"), ShouldNotBeNil)
	})
}
