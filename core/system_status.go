package core

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// SystemStatus is the aggregated health snapshot for the admin dashboard.
type SystemStatus struct {
	Database struct {
		OK bool `json:"ok"`
	} `json:"database"`
	Redis struct {
		OK             bool  `json:"ok"`
		ActiveSessions int64 `json:"active_sessions"`
	} `json:"redis"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// CollectSystemStatus pings the backing stores and counts live sessions.
// Everything is best-effort; a failing store shows up as ok=false rather
// than failing the endpoint.
func CollectSystemStatus(ctx context.Context, db *pgxpool.Pool, rdb *redis.Client, startedAt time.Time) SystemStatus {
	var st SystemStatus

	if db != nil && db.Ping(ctx) == nil {
		st.Database.OK = true
	}

	if rdb != nil && rdb.Ping(ctx).Err() == nil {
		st.Redis.OK = true
		st.Redis.ActiveSessions = countSessions(ctx, rdb)
	}

	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}

	return st
}

// countSessions scans the session key space. Best-effort: errors yield 0.
func countSessions(ctx context.Context, rdb *redis.Client) int64 {
	var count int64
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", 200).Result()
		if err != nil {
			return count
		}
		count += int64(len(keys))
		if next == 0 {
			return count
		}
		cursor = next
	}
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal
		if memAvailable <= memTotal {
			used = memTotal - memAvailable
		}
		// convert KiB -> bytes
		used *= 1024
		total *= 1024
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
