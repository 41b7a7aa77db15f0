package where

import (
	"strings"
	"testing"

	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/streamctl/streamctl/constant"
	"github.com/streamctl/streamctl/filesystem"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestPaths(t *testing.T) {
	Convey("Path functions", t, func() {
		Convey("Config()", func() {
			path := Config()
			So(path, ShouldNotBeEmpty)
			So(lo.Must(filesystem.API().IsDir(path)), ShouldBeTrue)
		})

		Convey("Logs() lives under Config()", func() {
			path := Logs()
			So(strings.HasPrefix(path, Config()), ShouldBeTrue)
			So(lo.Must(filesystem.API().IsDir(path)), ShouldBeTrue)
		})

		Convey("Temp() is namespaced", func() {
			So(Temp(), ShouldEndWith, constant.Streamctl)
		})

		Convey("Config() honours the override", func() {
			t.Setenv(EnvConfigPath, "/tmp/streamctl-test-config")
			So(Config(), ShouldEqual, "/tmp/streamctl-test-config")
		})
	})
}
