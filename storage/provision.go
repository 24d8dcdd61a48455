package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

const queueAlreadyExists = "QueueAlreadyExists"

// alreadyExists reports whether err is the service's answer to creating a
// resource that is already there.
func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}

// EnsureTables creates the named tables, skipping blank names and tables
// that already exist. It returns the names it actually created.
func EnsureTables(ctx context.Context, connStr string, names []string) ([]string, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, tablesClientOptions())
	if err != nil {
		return nil, err
	}
	var created []string
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil {
			if alreadyExists(err, string(aztables.TableAlreadyExists)) {
				continue
			}
			return created, err
		}
		created = append(created, name)
	}
	return created, nil
}

// EnsureQueues creates the named queues, skipping blank names and queues
// that already exist. It returns the names it actually created.
func EnsureQueues(ctx context.Context, connStr string, names []string) ([]string, error) {
	var created []string
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return created, err
		}
		if _, err := q.Create(ctx, nil); err != nil {
			if alreadyExists(err, queueAlreadyExists) {
				continue
			}
			return created, err
		}
		created = append(created, name)
	}
	return created, nil
}
