package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// Provider-side failure modes the handlers care about. Everything else is a
// generic provider error.
var (
	ErrUsernameExists = errors.New("username already exists")
	ErrNotAuthorized  = errors.New("incorrect username or password")
	ErrCodeMismatch   = errors.New("invalid confirmation code")
	ErrUserNotFound   = errors.New("user not found")
)

// cognitoAPI is the subset of the identity provider API the client uses.
type cognitoAPI interface {
	SignUp(ctx context.Context, in *cognitoidentityprovider.SignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
	ConfirmSignUp(ctx context.Context, in *cognitoidentityprovider.ConfirmSignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error)
}

// TokenSet is the credential bundle issued on a successful login.
type TokenSet struct {
	IDToken      string `json:"idToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int32  `json:"expiresIn"`
}

// Client talks to the external identity provider. The service never stores
// credentials itself; registration and authentication are delegated entirely.
type Client struct {
	api          cognitoAPI
	clientID     string
	clientSecret string
}

// NewClient builds a provider client for the given region and app client.
func NewClient(ctx context.Context, region, clientID, clientSecret string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Client{
		api:          cognitoidentityprovider.NewFromConfig(cfg),
		clientID:     clientID,
		clientSecret: clientSecret,
	}, nil
}

// NewClientWithAPI wires a custom provider API, used in tests.
func NewClientWithAPI(api cognitoAPI, clientID, clientSecret string) *Client {
	return &Client{api: api, clientID: clientID, clientSecret: clientSecret}
}

// SignUp registers a new user with the provider. The account stays
// unconfirmed until Confirm is called with the emailed code.
func (c *Client) SignUp(ctx context.Context, username, password, email, name string) error {
	_, err := c.api.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId:   aws.String(c.clientID),
		Username:   aws.String(username),
		Password:   aws.String(password),
		SecretHash: aws.String(c.secretHash(username)),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("preferred_username"), Value: aws.String(username)},
			{Name: aws.String("name"), Value: aws.String(name)},
		},
	})
	if err != nil {
		return mapProviderError(err)
	}
	return nil
}

// Login exchanges username+password for the provider's token set.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenSet, error) {
	out, err := c.api.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: map[string]string{
			"USERNAME":    username,
			"PASSWORD":    password,
			"SECRET_HASH": c.secretHash(username),
		},
	})
	if err != nil {
		return nil, mapProviderError(err)
	}
	if out.AuthenticationResult == nil {
		return nil, fmt.Errorf("identity provider returned no authentication result")
	}

	res := out.AuthenticationResult
	return &TokenSet{
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresIn:    res.ExpiresIn,
	}, nil
}

// Confirm completes registration with the emailed verification code.
func (c *Client) Confirm(ctx context.Context, username, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
		SecretHash:       aws.String(c.secretHash(username)),
	})
	if err != nil {
		return mapProviderError(err)
	}
	return nil
}

// secretHash computes base64(HMAC-SHA256(clientSecret, username+clientID)),
// the provider's required proof of client secret possession.
func (c *Client) secretHash(username string) string {
	mac := hmac.New(sha256.New, []byte(c.clientSecret))
	mac.Write([]byte(username + c.clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func mapProviderError(err error) error {
	var usernameExists *types.UsernameExistsException
	if errors.As(err, &usernameExists) {
		return ErrUsernameExists
	}
	var notAuthorized *types.NotAuthorizedException
	if errors.As(err, &notAuthorized) {
		return ErrNotAuthorized
	}
	var codeMismatch *types.CodeMismatchException
	if errors.As(err, &codeMismatch) {
		return ErrCodeMismatch
	}
	var expiredCode *types.ExpiredCodeException
	if errors.As(err, &expiredCode) {
		return ErrCodeMismatch
	}
	var userNotFound *types.UserNotFoundException
	if errors.As(err, &userNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("identity provider request failed: %w", err)
}
