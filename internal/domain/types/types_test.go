package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/clickrace/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given an Entry struct", t, func() {
		entry := types.Entry{UserID: "alice", ClickCount: 3}

		Convey("When encoding it for a client", func() {
			raw, err := json.Marshal(entry)

			Convey("Then the wire field names are camelCase", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, `{"userId":"alice","clickCount":3}`)
			})
		})
	})
}
