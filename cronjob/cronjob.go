package cronjob

import (
	"context"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/micromeda/micromeda-server/cache"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/logging"
	"github.com/micromeda/micromeda-server/service"
)

// Cron schedules the periodic jobs and starts the scheduler.
func Cron(ctx context.Context) *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.UTC)

	interval := config.GetMilliseconds("UPLOAD_PURGE_INTERVAL_MS")
	if interval > 0 {
		_, err := scheduler.Every(interval).SingletonMode().Do(work, PurgeUploads, "purge_uploads", interval)
		if err != nil {
			logging.Error(ctx, "[cronjob] failed to schedule purge_uploads: %v", err)
		}
	}

	scheduler.StartAsync()
	return scheduler
}

// PurgeUploads removes stale upload files and expired upload records.
func PurgeUploads(ctx context.Context) error {
	files, records, err := service.Impl.MicromedaIntf.PurgeExpired(ctx, config.GetString("UPLOAD_FOLDER"))
	if err != nil {
		return err
	}
	if files > 0 || records > 0 {
		logging.Info(ctx, "[cronjob] purged %d upload files and %d upload records", files, records)
	}
	return nil
}

// work runs the cronjob on the replica that takes its lock first, within
// maxDuration. It reports whether the job ran.
func work(cronjob func(context.Context) error, name string, maxDuration time.Duration) bool {
	cronjobID := uuid.New()
	ctx := context.WithValue(context.Background(), logging.ContextKeyRequestId, cronjobID.String()[:12])

	funcName := strings.Split(runtime.FuncForPC(reflect.ValueOf(cronjob).Pointer()).Name(), "/")
	logging.Debug(ctx, "[cronjob] start %s", funcName[len(funcName)-1])

	r, err := cache.GetRedis()
	if err != nil {
		logging.Error(ctx, "[cronjob] %s: %v", name, err)
		return false
	}
	mutex, err := r.GetLock("cronjob:"+name, maxDuration)
	if err != nil {
		logging.Debug(ctx, "[cronjob] %s skipped: %v", name, err)
		return false
	}
	defer func() {
		if ok, err := mutex.Unlock(); !ok || err != nil {
			logging.Warn(ctx, "[cronjob] %s failed to release lock: %v", name, err)
		}
	}()

	ch := make(chan struct{}, 1)

	ctxTimeout, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error(ctx, "\x1b[31m%v\n[Stack Trace]\n%s\x1b[m", r, debug.Stack())
			}
			ch <- struct{}{}
		}()
		if err := cronjob(ctxTimeout); err != nil {
			logging.Error(ctxTimeout, "[cronjob] %s error: %v", name, err)
		}
	}()

	select {
	case <-ctxTimeout.Done():
		logging.Error(ctxTimeout, "[cronjob] %s timeout error: %v", name, ctxTimeout.Err())
	case <-ch:
	}
	return true
}
