package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/gcp"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var errNotInitialized = errors.New("pubsub client not initialized")

// Client wraps the Pub/Sub v2 client with the project's topic and
// subscription names.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects and fails when the sales topic does not exist, since
// nothing can be published without it.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	switch {
	case strings.TrimSpace(gcpCfg.ProjectID) == "":
		return nil, errors.New("gcp project id is required")
	case strings.TrimSpace(cfg.SalesTopic) == "":
		return nil, errors.New("pubsub sales topic is required")
	}

	raw, err := pubsub.NewClient(ctx, gcpCfg.ProjectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, projectID: gcpCfg.ProjectID, cfg: cfg}
	if err := c.exists(ctx, kindTopic, cfg.SalesTopic); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, logger.Fields{
			"gcp_project": gcpCfg.ProjectID,
			"topic":       cfg.SalesTopic,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) exists(ctx context.Context, kind, name string) error {
	full := c.resourceName(kind, name)
	if full == "" {
		return fmt.Errorf("%s %q not configured", strings.TrimSuffix(kind, "s"), name)
	}
	var err error
	if kind == kindTopic {
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	} else {
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	}
	switch {
	case err == nil:
		return nil
	case gcp.IsNotFound(err):
		return fmt.Errorf("%s does not exist", full)
	default:
		return fmt.Errorf("checking %s: %w", full, err)
	}
}

// AnalyticsSubscription returns the subscriber feeding the analytics worker
// after checking the subscription exists.
func (c *Client) AnalyticsSubscription(ctx context.Context) (*pubsub.Subscriber, error) {
	if c == nil || c.client == nil {
		return nil, errNotInitialized
	}
	name := c.cfg.AnalyticsSubscription
	if err := c.exists(ctx, kindSubscription, name); err != nil {
		return nil, err
	}
	return c.client.Subscriber(c.resourceName(kindSubscription, name)), nil
}

// Publisher returns a publisher for a topic ID or full resource name. Callers
// own the handle and must Stop it.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName(kindTopic, topic)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

// Ping checks the sales topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.exists(ctx, kindTopic, c.cfg.SalesTopic)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short ID to projects/<p>/<kind>/<id>. Names that are
// already fully qualified pass through.
func (c *Client) resourceName(kind, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	project := strings.TrimSpace(c.projectID)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
