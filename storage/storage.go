package storage

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard/domain"
)

// Storage provides access to the tables backing tasks, users and preferences.
type Storage struct {
	taskTable     *aztables.Client
	userTable     *aztables.Client
	settingsTable *aztables.Client
}

// Config names the tables used by Storage.
type Config struct {
	ConnectionString string
	TasksTable       string
	UsersTable       string
	SettingsTable    string
}

func tablesClientOptions() *aztables.ClientOptions {
	return &aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
}

// New creates a Storage instance from the given connection string.
func New(cfg Config) (*Storage, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(cfg.ConnectionString, tablesClientOptions())
	if err != nil {
		return nil, err
	}
	s := &Storage{taskTable: svc.NewClient(cfg.TasksTable)}
	if cfg.UsersTable != "" {
		s.userTable = svc.NewClient(cfg.UsersTable)
	}
	if cfg.SettingsTable != "" {
		s.settingsTable = svc.NewClient(cfg.SettingsTable)
	}
	return s, nil
}

// partitionFilter builds an OData filter for a single partition, escaping
// quotes so a user id cannot widen the query.
func partitionFilter(userID string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(userID, "'", "''") + "'"
}

// translateError maps table service responses onto domain sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return domain.ErrNotFound
		case http.StatusConflict:
			return domain.ErrAlreadyExists
		case http.StatusPreconditionFailed:
			return domain.ErrConcurrencyConflict
		}
	}
	return err
}

var errUsersTable = errors.New("users table not configured")
var errSettingsTable = errors.New("settings table not configured")
