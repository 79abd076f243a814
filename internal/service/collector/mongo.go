package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoCollector mongo:，除通用指标外，指标名为 serverStatus 文档中的点分路径
//
//	mongo:connections.current
//	mongo:opcounters.query
type MongoCollector struct {
	Timeout time.Duration
}

func (c *MongoCollector) Collect(ctx context.Context, t Target) (float64, error) {
	ep, err := endpointFrom(t, "mongo", 27017, c.Timeout)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, ep.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(MongoURI(ep)))
	if err != nil {
		return 0, fmt.Errorf("mongo connect %s: %w", ep.Addr(), err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	ping := func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
	if v, ok, err := probe(ctx, t.Metric, ping); ok {
		return v, err
	}

	var status bson.M
	err = client.Database("admin").RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}}).Decode(&status)
	if err != nil {
		return 0, fmt.Errorf("mongo serverStatus on %s: %w", ep.Addr(), err)
	}
	raw, err := lookupPath(status, t.Metric)
	if err != nil {
		return 0, err
	}
	return parseNumber(raw)
}

// MongoURI 用户名密码需要转义
func MongoURI(ep Endpoint) string {
	u := &url.URL{Scheme: "mongodb", Host: ep.Addr()}
	if ep.User != "" {
		u.User = url.UserPassword(ep.User, ep.Password)
	}
	q := u.Query()
	q.Set("connectTimeoutMS", fmt.Sprintf("%d", ep.Timeout.Milliseconds()))
	if ep.Database != "" {
		q.Set("authSource", ep.Database)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// lookupPath 在嵌套文档中取 "a.b.c"
func lookupPath(doc bson.M, path string) (any, error) {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(bson.M)
		if !ok {
			if d, isDoc := cur.(bson.D); isDoc {
				m = d.Map()
				ok = true
			}
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a document at %q", ErrUnknownMetric, path, key)
		}
		cur, ok = m[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q has no field %q", ErrUnknownMetric, path, key)
		}
	}
	return cur, nil
}
