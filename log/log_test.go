package log

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/filesystem"
	"github.com/streamctl/streamctl/key"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestLogging(t *testing.T) {
	Convey("Given logging is disabled", t, func() {
		viper.Set(key.LogsWrite, false)
		So(Setup(), ShouldBeNil)

		Convey("WithFields still returns a usable entry", func() {
			So(func() { WithFields(Fields{"a": 1}).Info("dropped") }, ShouldNotPanic)
		})
	})

	Convey("Given an explicit writer", t, func() {
		viper.Set(key.LogsLevel, "debug")
		viper.Set(key.LogsJson, true)
		var buf bytes.Buffer
		SetOutput(&buf)

		Convey("Messages are written as JSON", func() {
			Debugf("state %s", "playing")
			So(buf.String(), ShouldContainSubstring, `"msg":"state playing"`)
		})

		Convey("Fields are attached", func() {
			WithFields(Fields{"session": "abc"}).Info("loaded")
			So(buf.String(), ShouldContainSubstring, `"session":"abc"`)
		})
	})

	Convey("Given logs.write is on", t, func() {
		viper.Set(key.LogsWrite, true)
		viper.Set(key.LogsJson, false)

		Convey("Setup opens a file in the logs directory", func() {
			So(Setup(), ShouldBeNil)
			Info("hello")
		})
	})
}
