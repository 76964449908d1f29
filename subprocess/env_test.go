package subprocess

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMergeEnvironment(t *testing.T) {
	Convey("When merging an environment", t, func() {
		base := []string{"PATH=/usr/bin", "HOME=/home/evg", "EMPTY=", "HOME=/root"}

		Convey("overrides should replace inherited values", func() {
			env := MergeEnvironment(base, map[string]string{"HOME": "/tmp/state"})
			So(EnvironmentMap(env)["HOME"], ShouldEqual, "/tmp/state")
			So(EnvironmentMap(env)["PATH"], ShouldEqual, "/usr/bin")
		})

		Convey("later duplicates in the base should win", func() {
			env := MergeEnvironment(base, nil)
			So(EnvironmentMap(env)["HOME"], ShouldEqual, "/root")
			So(len(env), ShouldEqual, 3)
		})

		Convey("empty values should be preserved", func() {
			env := MergeEnvironment(base, map[string]string{"ALSO_EMPTY": ""})
			So(env, ShouldContain, "EMPTY=")
			So(env, ShouldContain, "ALSO_EMPTY=")
		})

		Convey("values containing '=' should be kept whole", func() {
			env := MergeEnvironment([]string{"OPTS=a=b=c"}, nil)
			So(env, ShouldResemble, []string{"OPTS=a=b=c"})
		})

		Convey("windows per-drive entries should survive", func() {
			env := MergeEnvironment([]string{`=C:=C:\work`}, nil)
			So(env, ShouldResemble, []string{`=C:=C:\work`})
		})

		Convey("malformed entries should be dropped", func() {
			env := MergeEnvironment([]string{"NOEQUALS", "", "X=1"}, nil)
			So(env, ShouldResemble, []string{"X=1"})
		})

		Convey("the result should be sorted", func() {
			env := MergeEnvironment([]string{"B=2", "A=1"}, map[string]string{"C": "3"})
			So(env, ShouldResemble, []string{"A=1", "B=2", "C=3"})
		})

		Convey("the inputs should not be modified", func() {
			overrides := map[string]string{"PATH": "/opt/bin"}
			MergeEnvironment(base, overrides)
			So(base[0], ShouldEqual, "PATH=/usr/bin")
			So(len(base), ShouldEqual, 4)
			So(overrides, ShouldResemble, map[string]string{"PATH": "/opt/bin"})
		})
	})
}
