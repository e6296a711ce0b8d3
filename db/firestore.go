package db

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// ConnectToFirestore opens a Firestore client. credentialsJSON may be empty, in
// which case application default credentials are used.
func ConnectToFirestore(ctx context.Context, projectID, credentialsJSON string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	slog.Info("firestore_connected", "project", projectID)
	return client, nil
}
