package instance

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ericpauley/ec2-autostop/internal/config"
)

type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

type MetadataAPI interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

// SDK is a Controller backed by the AWS SDK.
type SDK struct {
	ec2      EC2API
	metadata MetadataAPI
}

func NewSDK(ec2Svc EC2API, metadata MetadataAPI) *SDK {
	return &SDK{ec2: ec2Svc, metadata: metadata}
}

// LoadSDK builds the EC2 and metadata clients for settings. Static keys
// take precedence over the default credential chain; a role ARN is assumed
// on top of whichever credentials result.
func LoadSDK(ctx context.Context, settings config.AWSSettings) (*SDK, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(settings.Region)}
	if settings.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	if settings.RoleARN != "" {
		stsSvc := sts.NewFromConfig(cfg)
		creds := stscreds.NewAssumeRoleProvider(stsSvc, settings.RoleARN)
		cfg.Credentials = aws.NewCredentialsCache(creds)
	}
	return NewSDK(ec2.NewFromConfig(cfg), imds.NewFromConfig(cfg)), nil
}

func (s *SDK) InstanceID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	out, err := s.metadata.GetMetadata(ctx, &imds.GetMetadataInput{Path: "instance-id"})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer out.Content.Close()
	body, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	id := strings.TrimSpace(string(body))
	if id == "" {
		return "", ErrUnavailable
	}
	return id, nil
}

func (s *SDK) LaunchTime(ctx context.Context, instanceID string) (time.Time, error) {
	out, err := s.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("describing %s: %w", instanceID, err)
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return time.Time{}, fmt.Errorf("instance %s not found", instanceID)
	}
	launch := out.Reservations[0].Instances[0].LaunchTime
	if launch == nil {
		return time.Time{}, fmt.Errorf("instance %s has no launch time", instanceID)
	}
	return *launch, nil
}

func (s *SDK) Stop(ctx context.Context, instanceID string, hibernate bool) error {
	input := &ec2.StopInstancesInput{InstanceIds: []string{instanceID}}
	if hibernate {
		input.Hibernate = aws.Bool(true)
	}
	if _, err := s.ec2.StopInstances(ctx, input); err != nil {
		return fmt.Errorf("stopping %s: %w", instanceID, err)
	}
	return nil
}
