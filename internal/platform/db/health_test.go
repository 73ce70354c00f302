package db

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPoolStats_JSONTags(t *testing.T) {
	stats := PoolStats{
		TotalConns:      1,
		IdleConns:       1,
		MaxConns:        10,
		AcquireCount:    50,
		AcquireDuration: "250ms",
		Healthy:         true,
	}

	body, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"total_conns":1`, `"max_conns":10`, `"acquire_duration":"250ms"`, `"healthy":true`} {
		if !strings.Contains(string(body), key) {
			t.Errorf("expected %s in %s", key, body)
		}
	}
}
