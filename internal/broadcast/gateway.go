package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"

	"github.com/nosisky/leaderboard-system/internal/domain"
)

// gatewayAPI is the slice of the management API the deliverer uses.
type gatewayAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// GatewayDeliverer pushes payloads through the API Gateway management
// endpoint. Used in the distributed topology where the socket lives on
// the gateway, not in this process.
type GatewayDeliverer struct {
	api gatewayAPI
}

func NewGatewayDeliverer(ctx context.Context, endpoint string) (*GatewayDeliverer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &GatewayDeliverer{api: api}, nil
}

func NewGatewayDelivererWithAPI(api gatewayAPI) *GatewayDeliverer {
	return &GatewayDeliverer{api: api}
}

// Deliver implements domain.Deliverer. A connection the gateway no longer
// knows is reported as gone so the registry can drop its record.
func (d *GatewayDeliverer) Deliver(ctx context.Context, connectionID string, payload []byte) error {
	_, err := d.api.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         payload,
	})
	if err != nil {
		var gone *types.GoneException
		if errors.As(err, &gone) {
			return fmt.Errorf("%w: %s", domain.ErrConnectionGone, connectionID)
		}
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	return nil
}
