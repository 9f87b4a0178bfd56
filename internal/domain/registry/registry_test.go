package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/clickrace/internal/domain/registry"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryRegistry(t *testing.T) {
	Convey("Given a new in-memory registry", t, func() {
		ctx := context.Background()
		r := registry.NewInMemoryRegistry(registry.WithCapacity(16))

		Convey("Then it starts empty", func() {
			So(r.Size(), ShouldEqual, 0)
			So(r.IsRegistered(ctx, "alice"), ShouldBeFalse)
		})

		Convey("When registering a participant", func() {
			existed := r.Register(ctx, "alice")

			Convey("Then the participant is known", func() {
				So(existed, ShouldBeFalse)
				So(r.IsRegistered(ctx, "alice"), ShouldBeTrue)
				So(r.Size(), ShouldEqual, 1)
			})

			Convey("And registering again reports the duplicate", func() {
				So(r.Register(ctx, "alice"), ShouldBeTrue)
				So(r.Size(), ShouldEqual, 1)
			})

			Convey("And unregistering forgets the participant", func() {
				r.Unregister(ctx, "alice")
				r.Unregister(ctx, "alice")
				So(r.IsRegistered(ctx, "alice"), ShouldBeFalse)
				So(r.Size(), ShouldEqual, 0)
			})
		})

		Convey("When registering concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					r.Register(ctx, fmt.Sprintf("user-%d", n%10))
				}(i)
			}
			wg.Wait()

			Convey("Then each id is counted once", func() {
				So(r.Size(), ShouldEqual, 10)
			})
		})
	})
}
