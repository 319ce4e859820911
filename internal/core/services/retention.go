// Package services contains core business logic services
package services

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

const (
	retentionInterval  = 10 * time.Minute
	retentionDays      = 7
	diskUsageThreshold = 70.0
	purgeBatchLimit    = 1000
)

// RunRetention starts the background purge of aged notification logs.
// Raw webhook payloads accumulate quickly; entries older than the
// retention window are deleted in bounded batches, but only under disk
// pressure. Message records are never purged here.
func RunRetention(db *sql.DB) {
	ticker := time.NewTicker(retentionInterval)

	go func() {
		for range ticker.C {
			usage, err := disk.Usage("/")
			if err != nil {
				slog.Error("Retention disk check failed", "error", err)
				continue
			}

			if usage.UsedPercent < diskUsageThreshold {
				slog.Debug("Retention check: disk usage OK",
					"used_percent", usage.UsedPercent,
				)
				continue
			}

			result, err := db.Exec(`
				DELETE FROM notification_logs
				WHERE created_at < DATE_SUB(NOW(), INTERVAL ? DAY)
				LIMIT ?
			`, retentionDays, purgeBatchLimit)

			if err != nil {
				slog.Error("Retention purge failed", "error", err)
				continue
			}

			rows, _ := result.RowsAffected()
			slog.Info("Retention purge completed",
				"purged", rows,
				"used_percent", usage.UsedPercent,
			)
		}
	}()

	slog.Info("Retention service started", "interval", retentionInterval)
}
