package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.signalsAccepted.WithLabelValues("tab_switch").Inc()

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_signals_accepted_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.signalsDropped.WithLabelValues(DropDuplicate))
			RecordSignalDropped(DropDuplicate)
			RecordSignalDropped(DropDuplicate)

			Convey("Then counters move", func() {
				after := testutil.ToFloat64(globalManager.signalsDropped.WithLabelValues(DropDuplicate))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording every helper", func() {
			So(func() {
				RecordSignalAccepted("tab_switch")
				RecordAlert("critical")
				RecordScoreLatency(0.4)
				UpdateSessionsActive(3)
				RecordSessionReaped()
				RecordRelayMessage("webrtc_offer", "forwarded")
				UpdateRoomMembers("observer", 1)
				AddWebsocketConnections(1)
				AddWebsocketConnections(-1)
				RecordWebsocketMessage("in")
				RecordWebsocketEviction()
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 0.01)
				RecordRepositoryLatency("create_event_log", 1.2)
				RecordRepositoryError("get_session")
				RecordCacheLookup("hit")
				RecordAuditExport("ok")
				UpdateDedupeSize(12)
				UpdateQueueCapacity(1024)
				UpdateQueueSize(5)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
