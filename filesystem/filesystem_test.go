package filesystem

import (
	"testing"

	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

func TestApi(t *testing.T) {
	Convey("Filesystem API", t, func() {
		Convey("Should default to OsFs", func() {
			SetOsFs()
			So(API().Name(), ShouldEqual, "OsFs")
		})

		Convey("Should switch to MemMapFs", func() {
			SetMemMapFs()
			So(API().Name(), ShouldEqual, "MemMapFS")
		})
	})
}

func TestWriteAtomic(t *testing.T) {
	Convey("Given an in-memory filesystem", t, func() {
		SetMemMapFs()

		Convey("WriteAtomic creates parents and leaves no temp file", func() {
			So(WriteAtomic("/a/b/c.json", []byte(`{}`), 0644), ShouldBeNil)
			So(string(lo.Must(API().ReadFile("/a/b/c.json"))), ShouldEqual, "{}")
			So(lo.Must(API().Exists("/a/b/c.json.tmp")), ShouldBeFalse)
		})

		Convey("WriteAtomic overwrites existing content", func() {
			So(WriteAtomic("/x.txt", []byte("one"), 0644), ShouldBeNil)
			So(WriteAtomic("/x.txt", []byte("two"), 0644), ShouldBeNil)
			So(string(lo.Must(API().ReadFile("/x.txt"))), ShouldEqual, "two")
		})
	})
}
