package logger

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { _ = Sync() }()

		Convey("Get and Named return usable loggers", func() {
			So(Get(), ShouldNotBeNil)
			named := Named("test")
			So(named, ShouldNotBeNil)
			named.Info(context.Background(), "hello", String("k", "v"))
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given a level string", t, func() {
		So(Init(), ShouldBeNil)

		Convey("known levels are accepted", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", ""} {
				So(SetLevelString(lvl), ShouldBeNil)
			}
			So(SetLevelString("DEBUG"), ShouldBeNil)
			So(Level(), ShouldEqual, "debug")
		})

		Convey("unknown levels are rejected", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})

		Reset(func() { _ = SetLevelString("info") })
	})
}

func TestFieldsReachCore(t *testing.T) {
	Convey("Given a logger over an observed core", t, func() {
		core, logs := observer.New(zapcore.DebugLevel)
		l := New(core).Named("store")
		ctx := context.Background()

		Convey("fields and the logger name are recorded", func() {
			l.Warn(ctx, "retrying", String("subject", "user1"), Uint64("attempt", 2), Error(errors.New("busy")))

			So(logs.Len(), ShouldEqual, 1)
			entry := logs.All()[0]
			So(entry.LoggerName, ShouldEqual, "store")
			So(entry.Message, ShouldEqual, "retrying")
			fields := entry.ContextMap()
			So(fields["subject"], ShouldEqual, "user1")
			So(fields["attempt"], ShouldEqual, uint64(2))
			So(fields["error"], ShouldEqual, "busy")
		})

		Convey("Nop discards", func() {
			Nop().Info(ctx, "ignored")
			So(logs.Len(), ShouldEqual, 0)
		})
	})
}
