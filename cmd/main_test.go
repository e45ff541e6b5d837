package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/vigil/internal/config"
	"github.com/okian/vigil/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.WorkerCount = 2
	cfg.QueueSize = 100
	cfg.TokenSecret = "main-test-secret"
	cfg.PublicURL = "https://vigil.test"
	return cfg
}

func TestBuild(t *testing.T) {
	convey.Convey("Given a memory-backed configuration", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cfg := testConfig()

		convey.Convey("When the application is built", func() {
			a, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer a.shutdown(ctx)

			convey.Convey("Then the health endpoint answers", func() {
				rec := httptest.NewRecorder()
				a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("Then a meeting can be created and joined", func() {
				rec := httptest.NewRecorder()
				a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/meetings",
					strings.NewReader(`{"recruiter_name":"Rita"}`)))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusCreated)

				var created struct {
					Meeting struct {
						ID string `json:"id"`
					} `json:"meeting"`
					JoinLink      string `json:"join_link"`
					ObserverToken string `json:"observer_token"`
				}
				convey.So(json.NewDecoder(rec.Body).Decode(&created), convey.ShouldBeNil)
				convey.So(created.JoinLink, convey.ShouldEqual, "https://vigil.test/join/"+created.Meeting.ID)
				convey.So(created.ObserverToken, convey.ShouldNotBeEmpty)

				rec = httptest.NewRecorder()
				a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
					"/api/meetings/"+created.Meeting.ID+"/join",
					strings.NewReader(`{"candidate_name":"Cara"}`)))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusCreated)
			})

			convey.Convey("Then the docs and pages are served", func() {
				for _, path := range []string{"/api-docs", "/openapi.yaml", "/"} {
					rec := httptest.NewRecorder()
					a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
					convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("Then the service reports stats", func() {
				stats := a.svc.GetStats(ctx)
				convey.So(stats["started"], convey.ShouldEqual, true)
				convey.So(stats["workerCount"], convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the cache is disabled", func() {
			cfg.CacheDriver = config.CacheNone
			a, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer a.shutdown(ctx)

			convey.Convey("Then no cache store is opened", func() {
				convey.So(a.scores, convey.ShouldBeNil)
			})
		})

		convey.Convey("When no token secret is configured", func() {
			cfg.TokenSecret = ""
			a, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer a.shutdown(ctx)

			convey.Convey("Then an ephemeral secret is used", func() {
				convey.So(a.svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			cfg.StoreDriver = "mongo"
			_, err := build(ctx, cfg, logger.Nop())

			convey.Convey("Then build fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the reaper schedule cannot be parsed", func() {
			cfg.ReaperSchedule = "every now and then"
			_, err := build(ctx, cfg, logger.Nop())

			convey.Convey("Then build fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "start service")
			})
		})
	})
}

func TestEphemeralSecret(t *testing.T) {
	convey.Convey("Given two generated secrets", t, func() {
		a, errA := ephemeralSecret()
		b, errB := ephemeralSecret()

		convey.Convey("Then both are distinct hex strings", func() {
			convey.So(errA, convey.ShouldBeNil)
			convey.So(errB, convey.ShouldBeNil)
			convey.So(len(a), convey.ShouldEqual, ephemeralSecretBytes*2)
			convey.So(a, convey.ShouldNotEqual, b)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given a running application", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a, err := build(ctx, testConfig(), logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer a.shutdown(ctx)

		convey.Convey("Then updating metrics does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(ctx, a.svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then the updaters return once the context ends", func() {
			stopped, stop := context.WithCancel(ctx)
			stop()
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(stopped)
				startServiceMetricsUpdater(stopped, a.svc)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("updaters did not stop")
			}
		})
	})
}
