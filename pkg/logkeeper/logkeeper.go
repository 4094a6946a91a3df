// Package logkeeper consumes the front-end request log topic and indexes
// every entry into a search index with a pool of workers.
package logkeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"smartcomments/pkg/models"
)

// MessageReader is the part of *kafka.Reader the keeper consumes from.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Indexer interface {
	Index(ctx context.Context, index, docID string, body []byte) error
}

type ESIndexer struct {
	es *elasticsearch.Client
}

func NewESIndexer(nodes []string) (*ESIndexer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: nodes})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &ESIndexer{es: es}, nil
}

func (i *ESIndexer) Index(ctx context.Context, index, docID string, body []byte) error {
	res, err := i.es.Index(
		index,
		bytes.NewReader(body),
		i.es.Index.WithDocumentID(docID),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing document %s: %s", docID, res.Status())
	}
	return nil
}

type Keeper struct {
	idx     Indexer
	index   string
	workers int
}

func New(idx Indexer, index string, workers int) *Keeper {
	if workers < 1 {
		workers = 1
	}
	return &Keeper{idx: idx, index: index, workers: workers}
}

// Run reads messages until ctx is cancelled, then drains the workers.
// Read errors other than cancellation are logged and reading continues.
func (k *Keeper) Run(ctx context.Context, r MessageReader) {
	jobs := make(chan kafka.Message, k.workers*5)

	var wg sync.WaitGroup
	wg.Add(k.workers)
	for workerID := 0; workerID < k.workers; workerID++ {
		go func(id int) {
			defer wg.Done()
			k.worker(ctx, jobs, id)
		}(workerID)
	}

	log.Info("[logkeeper] accepting logs...")
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			log.Errorf("[logkeeper] failed to read message from Kafka: %v", err)
			continue
		}
		log.Debugf("[logkeeper] received message: %s", string(msg.Value))

		jobs <- msg
	}

	close(jobs)
	wg.Wait()
}

// worker indexes until the jobs channel is closed. Jobs already queued when
// ctx is cancelled are still indexed.
func (k *Keeper) worker(ctx context.Context, jobs <-chan kafka.Message, workerID int) {
	for msg := range jobs {
		if err := k.handle(context.WithoutCancel(ctx), msg); err != nil {
			log.Errorf("[logkeeper][workerID:%d] %v", workerID, err)
		}
	}
	log.Infof("[logkeeper][workerID:%d] jobs channel closed, exiting worker", workerID)
}

func (k *Keeper) handle(ctx context.Context, msg kafka.Message) error {
	var entry models.LogEntry
	if err := json.Unmarshal(msg.Value, &entry); err != nil {
		return fmt.Errorf("failed to unmarshal log entry: %w", err)
	}
	if entry.RequestID == "" {
		return errors.New("log entry without request id")
	}

	if err := k.idx.Index(ctx, k.index, entry.Service+entry.RequestID, msg.Value); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	log.Infof("[logkeeper][%s] log entry indexed", shorten(entry.RequestID))

	return nil
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
