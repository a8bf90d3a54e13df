package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/agrovia/agrovia-api/internal/domain/event"
)

// AuditIndexer is a Channel A handler that indexes every auth event into
// Elasticsearch as a security-audit document. Indexing failures are logged
// and swallowed; the audit trail is best-effort and must not fail commands.
type AuditIndexer struct {
	ES     *elasticsearch.Client
	Index  string
	Logger *logrus.Logger
}

func NewAuditIndexer(es *elasticsearch.Client, index string, logger *logrus.Logger) *AuditIndexer {
	return &AuditIndexer{ES: es, Index: index, Logger: logger}
}

func (a *AuditIndexer) Handle(ctx context.Context, ev event.DomainEvent) error {
	if a.ES == nil || a.Index == "" {
		return nil
	}
	doc := map[string]any{
		"event_id":     ev.EventID(),
		"event_type":   RoutingKey(ev.EventName()),
		"aggregate_id": ev.AggregateID(),
		"occurred_at":  ev.OccurredAt().Format(time.RFC3339Nano),
		"version":      ev.EventVersion(),
		"event":        ev,
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: a.Index, DocumentID: ev.EventID(), Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, a.ES)
	if err != nil {
		if a.Logger != nil {
			a.Logger.WithError(err).WithField("event_id", ev.EventID()).Warn("audit index failed")
		}
		return nil
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && a.Logger != nil {
		a.Logger.WithField("status", res.Status()).WithField("event_id", ev.EventID()).Warn("audit index response error")
	}
	return nil
}
