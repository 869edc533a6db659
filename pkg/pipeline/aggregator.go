package pipeline

import (
	"strings"

	"github.com/platinummonkey/beacon/pkg/ingest"
)

// PageBucket is the per-page accumulation of one batch: the most recent
// value seen for each known vital, the latest contributing timestamp,
// the first event's session, and the merged contextual data of every
// event that touched the page.
type PageBucket struct {
	PageURL     string
	SessionID   string
	Metrics     map[string]float64
	TimestampMs float64
	Data        map[string]interface{}
}

// AggregateByPage collapses a batch's raw events into one bucket per
// distinct page URL, preserving input order of first appearance.
//
// Only web_vital events contribute metric values; names are matched
// case-insensitively against the known vitals and anything else is
// dropped. Later events overwrite earlier ones on both metric values
// and data keys; within a single batch, last wins.
func AggregateByPage(events []ingest.Event) []*PageBucket {
	buckets := make(map[string]*PageBucket)
	var order []string

	for _, ev := range events {
		bucket, ok := buckets[ev.Page]
		if !ok {
			bucket = &PageBucket{
				PageURL:   ev.Page,
				SessionID: ev.SessionID,
				Metrics:   make(map[string]float64),
				Data:      make(map[string]interface{}),
			}
			if ev.TS != nil {
				bucket.TimestampMs = *ev.TS
			}
			buckets[ev.Page] = bucket
			order = append(order, ev.Page)
		}

		if ev.Type == ingest.EventTypeWebVital && ev.Value != nil {
			name := strings.ToLower(ev.Name)
			if isValidMetric(name) {
				bucket.Metrics[name] = *ev.Value
			}
		}

		if ev.TS != nil && *ev.TS > bucket.TimestampMs {
			bucket.TimestampMs = *ev.TS
		}

		for k, v := range ev.Data {
			bucket.Data[k] = v
		}
	}

	result := make([]*PageBucket, 0, len(order))
	for _, page := range order {
		result = append(result, buckets[page])
	}
	return result
}

func isValidMetric(name string) bool {
	for _, m := range ingest.ValidMetrics {
		if name == m {
			return true
		}
	}
	return false
}

// Metric returns the accumulated value for a vital, or nil when the
// batch never reported it.
func (b *PageBucket) Metric(name string) *float64 {
	if v, ok := b.Metrics[name]; ok {
		return &v
	}
	return nil
}

// DeviceType resolves the device type from the merged context data.
func (b *PageBucket) DeviceType() *string {
	if v := dataString(b.Data, "deviceType"); v != nil {
		return v
	}
	return dataString(b.Data, "device")
}

// Browser resolves the browser name, falling back to the first
// whitespace-delimited token of the user agent.
func (b *PageBucket) Browser() *string {
	if v := dataString(b.Data, "browser"); v != nil {
		return v
	}
	if ua := dataString(b.Data, "userAgent"); ua != nil {
		if token := strings.Fields(*ua); len(token) > 0 {
			return &token[0]
		}
	}
	return nil
}

// Country resolves the country from data.country or data.geo.country.
func (b *PageBucket) Country() *string {
	if v := dataString(b.Data, "country"); v != nil {
		return v
	}
	if geo, ok := b.Data["geo"].(map[string]interface{}); ok {
		return dataString(geo, "country")
	}
	return nil
}

// UserID resolves the user identifier, if the client reported one.
func (b *PageBucket) UserID() *string {
	return dataString(b.Data, "userId")
}

func dataString(data map[string]interface{}, key string) *string {
	if s, ok := data[key].(string); ok && s != "" {
		return &s
	}
	return nil
}
