// Package pubsub wraps the Google Cloud Pub/Sub v2 client the outbox
// publisher sends order events through.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
)

type Client struct {
	gcp     *pubsub.Client
	project string
	topics  []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and refuses to start unless every configured topic
// already exists. Topics are provisioned outside the service.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	conn, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		gcp:        conn,
		project:    project,
		topics:     topicNames(cfg),
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.checkTopics(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"gcp_project": project, "topics": c.topics}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	if name := strings.TrimSpace(cfg.OrderEventsTopic); name != "" {
		names = append(names, name)
	}
	return names
}

func (c *Client) checkTopics(ctx context.Context) error {
	if len(c.topics) == 0 {
		return errNoTopics
	}
	for _, name := range c.topics {
		_, err := c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicResourceName(c.project, name)})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %q does not exist", name)
		case err != nil:
			return fmt.Errorf("checking topic %q: %w", name, err)
		}
	}
	return nil
}

// Publisher returns the shared publisher for a topic id or full resource
// name. Handles are cached so batching settings apply across calls.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.gcp == nil {
		return nil
	}
	resource := topicResourceName(c.project, name)
	if resource == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[resource]; ok {
		return pub
	}
	pub := c.gcp.Publisher(resource)
	c.publishers[resource] = pub
	return pub
}

// Ping re-checks that the configured topics are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.checkTopics(ctx)
}

// Close flushes cached publishers before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.gcp == nil {
		return nil
	}
	c.mu.Lock()
	for _, pub := range c.publishers {
		pub.Stop()
	}
	c.publishers = nil
	c.mu.Unlock()
	return c.gcp.Close()
}

func topicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + name
}
