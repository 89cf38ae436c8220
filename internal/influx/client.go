// Package influx is the time-series layer backed by InfluxDB 2.x.
package influx

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Config holds connection settings.
type Config struct {
	URL         string
	Token       string
	Org         string
	Timeout     time.Duration
	InsecureTLS bool
}

// Querier runs a Flux query and returns the values of every record.
type Querier interface {
	Query(ctx context.Context, flux string) ([]map[string]any, error)
}

// Writer writes points into a bucket.
type Writer interface {
	Write(ctx context.Context, bucket string, points ...*write.Point) error
}

// Conn wraps an InfluxDB client bound to one organisation.
type Conn struct {
	client influxdb2.Client
	org    string
}

// Connect creates a client. No request is made until first use.
func Connect(cfg Config) *Conn {
	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		opts.SetHTTPRequestTimeout(uint(cfg.Timeout / time.Second))
	}
	if cfg.InsecureTLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return &Conn{
		client: influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts),
		org:    cfg.Org,
	}
}

func (c *Conn) Query(ctx context.Context, flux string) ([]map[string]any, error) {
	result, err := c.client.QueryAPI(c.org).Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer result.Close()

	var rows []map[string]any
	for result.Next() {
		values := result.Record().Values()
		row := make(map[string]any, len(values))
		for k, v := range values {
			row[k] = v
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	return rows, nil
}

func (c *Conn) Write(ctx context.Context, bucket string, points ...*write.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := c.client.WriteAPIBlocking(c.org, bucket).WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write to %s: %w", bucket, err)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (c *Conn) Ping(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

func (c *Conn) Close() {
	c.client.Close()
}
