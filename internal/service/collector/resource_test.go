package collector

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
)

func resourceTarget(metric string, public, secured map[string]string) Target {
	return Target{
		Metric:      metric,
		Measurement: measurement.ScheduledMeasurement{Entity: measurement.EntityID{Type: 3, ID: 9}},
		Config:      command.NewConfigResponse(public, secured),
	}
}

func TestEndpointFrom(t *testing.T) {
	tg := resourceTarget("availability",
		map[string]string{"mysql.host": "db.local", "mysql.port": "3307", "mysql.user": "monitor", "mysql.database": "app"},
		map[string]string{"mysql.password": "s3cret"},
	)
	ep, err := endpointFrom(tg, "mysql", 3306, 0)
	require.NoError(t, err)
	assert.Equal(t, Endpoint{
		Host: "db.local", Port: 3307, User: "monitor", Password: "s3cret", Database: "app", Timeout: 5 * time.Second,
	}, ep)
	assert.Equal(t, "db.local:3307", ep.Addr())

	_, err = endpointFrom(resourceTarget("x", nil, nil), "mysql", 3306, 0)
	assert.ErrorContains(t, err, "mysql.host")

	_, err = endpointFrom(resourceTarget("x", map[string]string{"redis.host": "h", "redis.port": "70000"}, nil), "redis", 6379, 0)
	assert.ErrorContains(t, err, "redis.port")
}

func TestProbe(t *testing.T) {
	down := func(context.Context) error { return errors.New("refused") }
	up := func(context.Context) error { return nil }

	v, ok, err := probe(context.Background(), MetricAvailability, down)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, ok, err = probe(context.Background(), MetricAvailability, up)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, ok, err = probe(context.Background(), MetricResponseTime, down)
	assert.True(t, ok)
	assert.Error(t, err)

	v, ok, err = probe(context.Background(), MetricResponseTime, up)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, v, 0.0)

	_, ok, _ = probe(context.Background(), "connections", up)
	assert.False(t, ok)
}

func TestParseNumber(t *testing.T) {
	for _, in := range []any{int32(7), int64(7), uint8(7), 7.0, float32(7), "7", []byte("7")} {
		v, err := parseNumber(in)
		require.NoError(t, err, "%T", in)
		assert.Equal(t, 7.0, v)
	}
	v, err := parseNumber(true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = parseNumber(nil)
	assert.Error(t, err)
	_, err = parseNumber(struct{}{})
	assert.Error(t, err)
}

func TestSQLDSNs(t *testing.T) {
	ep := Endpoint{Host: "db", Port: 3306, User: "mon", Password: "p@ss:word", Database: "app", Timeout: 3 * time.Second}

	parsed, err := mysql.ParseDSN(MySQLDSN(ep))
	require.NoError(t, err)
	assert.Equal(t, "mon", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "app", parsed.DBName)
	assert.Equal(t, 3*time.Second, parsed.Timeout)

	ep.Port = 5432
	u, err := url.Parse(PostgresDSN(ep))
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/app", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", pw)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "3", u.Query().Get("connect_timeout"))

	ep.Port = 1433
	ep.Database = ""
	u, err = url.Parse(SQLServerDSN(ep))
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "master", u.Query().Get("database"))

	ep.Port = 1521
	ep.Database = "XE"
	assert.Contains(t, OracleDSN(ep), "oracle://")
	assert.Contains(t, OracleDSN(ep), "db:1521/XE")
}

func TestSQLCollectorRequiresConfiguredQuery(t *testing.T) {
	opened := false
	c := &SQLCollector{Prefix: "postgres", DefaultPort: 5432, Open: func(Endpoint) (*sql.DB, error) {
		opened = true
		return nil, errors.New("unreachable")
	}}
	tg := resourceTarget("connections", map[string]string{"postgres.host": "db"}, nil)

	_, err := c.Collect(context.Background(), tg)
	assert.ErrorIs(t, err, ErrUnknownMetric)
	assert.False(t, opened)

	tg = resourceTarget("query.connections", map[string]string{
		"postgres.host":              "db",
		"postgres.query.connections": "SELECT count(*) FROM pg_stat_activity",
	}, nil)
	_, err = c.Collect(context.Background(), tg)
	assert.ErrorContains(t, err, "unreachable")
	assert.True(t, opened)
}

func TestParseRedisInfo(t *testing.T) {
	info := "# Clients\r\nconnected_clients:12\r\nblocked_clients:0\r\n\r\n# Memory\r\nused_memory:1048576\r\n"
	fields := parseRedisInfo(info)
	assert.Equal(t, "12", fields["connected_clients"])
	assert.Equal(t, "1048576", fields["used_memory"])
	assert.NotContains(t, fields, "# Clients")
}

func TestLookupPath(t *testing.T) {
	doc := bson.M{
		"connections": bson.M{"current": int32(5)},
		"opcounters":  bson.D{{Key: "query", Value: int64(99)}},
		"uptime":      3600.0,
	}
	v, err := lookupPath(doc, "connections.current")
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)

	v, err = lookupPath(doc, "opcounters.query")
	require.NoError(t, err)
	assert.Equal(t, int64(99), v)

	_, err = lookupPath(doc, "uptime.seconds")
	assert.ErrorIs(t, err, ErrUnknownMetric)
	_, err = lookupPath(doc, "missing")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestMongoURIEscapesCredentials(t *testing.T) {
	u, err := url.Parse(MongoURI(Endpoint{Host: "m", Port: 27017, User: "mon", Password: "a/b@c", Database: "admin", Timeout: time.Second}))
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "a/b@c", pw)
	assert.Equal(t, "admin", u.Query().Get("authSource"))
	assert.Equal(t, "1000", u.Query().Get("connectTimeoutMS"))
}

func TestFirstNumber(t *testing.T) {
	v, err := firstNumber("load: 0.42 0.30 0.12\n")
	require.NoError(t, err)
	assert.Equal(t, 0.42, v)

	_, err = firstNumber("no digits here")
	assert.Error(t, err)
}

func TestResourceCollectorsRejectUnknownMetrics(t *testing.T) {
	tg := resourceTarget("bogus", map[string]string{"ftp.host": "127.0.0.1", "ssh.host": "127.0.0.1"}, nil)

	_, err := (&FTPCollector{}).Collect(context.Background(), tg)
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = (&SSHCollector{}).Collect(context.Background(), tg)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}
