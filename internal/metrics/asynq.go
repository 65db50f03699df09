package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "asynq",
			Name:      "tasks_processed_total",
			Help:      "任务处理总数。",
		},
		[]string{"task_type"},
	)

	taskFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "asynq",
			Name:      "tasks_failed_total",
			Help:      "任务处理失败总数，retry 表示会重试，dropped 表示不再重试。",
		},
		[]string{"task_type", "disposition"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "asynq",
			Name:      "task_duration_seconds",
			Help:      "任务处理耗时（秒）。",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"task_type"},
	)

	exportPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "pages",
			Help:      "导出 PDF 的页数分布。",
			Buckets:   []float64{1, 2, 3, 4, 6, 10},
		},
	)
)

// AsynqMetricsMiddleware 记录 Asynq 任务处理指标。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			start := time.Now()

			err := next.ProcessTask(ctx, task)

			taskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			taskProcessedTotal.WithLabelValues(taskType).Inc()
			if err != nil {
				taskFailedTotal.WithLabelValues(taskType, disposition(err)).Inc()
			}
			return err
		})
	}
}

func disposition(err error) string {
	if errors.Is(err, asynq.SkipRetry) {
		return "dropped"
	}
	return "retry"
}

// ObserveExportPages 记录一次成功导出的页数。
func ObserveExportPages(pages int) {
	exportPages.Observe(float64(pages))
}
