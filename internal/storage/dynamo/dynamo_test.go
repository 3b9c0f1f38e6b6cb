package dynamo

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ory/dockertest"

	"spendsmart/internal/storage/storetest"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("could not connect to docker: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	resource, err := pool.Run("public.ecr.aws/aws-dynamodb-local/aws-dynamodb-local", "1.19.0", []string{})
	if err != nil {
		t.Fatalf("could not start resource: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Fatalf("could not purge resource: %v", err)
		}
	})

	t.Setenv("AWS_ACCESS_KEY_ID", "local")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "local")
	client, err := NewClient(context.Background(), "us-east-1", "http://localhost:"+resource.GetPort("8000/tcp"))
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		_, err := client.ListTables(context.Background(), &dynamodb.ListTablesInput{})
		return err
	}); err != nil {
		t.Fatalf("could not connect to dynamo container: %v", err)
	}

	store := NewStore(WithDynamoDBClient(client), WithTableName("ledger"))
	if err := store.EnsureTable(context.Background()); err != nil {
		t.Fatalf("could not create table: %v", err)
	}
	return store
}

func TestStore_Integration(t *testing.T) {
	storetest.Run(t, newIntegrationStore(t))
}

func TestTxSortKeyOrdersNumerically(t *testing.T) {
	if !(txSK(9) < txSK(10)) || !(txSK(99) < txSK(100)) {
		t.Fatalf("sort keys must order by id: %q %q", txSK(9), txSK(10))
	}
}
