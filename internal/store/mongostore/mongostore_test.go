package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/existflow/clientpulse/internal/store"
	"github.com/existflow/clientpulse/internal/store/storetest"
)

// startReplicaSet runs a single-node replica set; transactions need one
func startReplicaSet(t *testing.T) *mongo.Client {
	t.Helper()

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	uri := fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port.Port())
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(ctx) })

	cfg := bson.D{
		{Key: "_id", Value: "rs0"},
		{Key: "members", Value: bson.A{bson.D{{Key: "_id", Value: 0}, {Key: "host", Value: "localhost:27017"}}}},
	}
	err = client.Database("admin").RunCommand(ctx, bson.D{{Key: "replSetInitiate", Value: cfg}}).Err()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var status struct {
			IsWritablePrimary bool `bson:"isWritablePrimary"`
		}
		err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&status)
		return err == nil && status.IsWritablePrimary
	}, 30*time.Second, 250*time.Millisecond)

	return client
}

// Runs only when CLIENTPULSE_INTEGRATION is set; it needs Docker
func TestMongoConformance(t *testing.T) {
	if os.Getenv("CLIENTPULSE_INTEGRATION") == "" {
		t.Skip("set CLIENTPULSE_INTEGRATION=1 to run container tests")
	}

	client := startReplicaSet(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(client, "clientpulse_"+uuid.New().String()[:8])
		require.NoError(t, s.Migrate(context.Background()))
		t.Cleanup(func() { s.db.Drop(context.Background()) })
		return s
	})
}
