package identity

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCognito struct {
	signUpIn    *cognitoidentityprovider.SignUpInput
	initiateIn  *cognitoidentityprovider.InitiateAuthInput
	confirmIn   *cognitoidentityprovider.ConfirmSignUpInput
	signUpErr   error
	initiateErr error
	confirmErr  error
	authResult  *types.AuthenticationResultType
}

func (f *fakeCognito) SignUp(_ context.Context, in *cognitoidentityprovider.SignUpInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error) {
	f.signUpIn = in
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &cognitoidentityprovider.SignUpOutput{}, nil
}

func (f *fakeCognito) InitiateAuth(_ context.Context, in *cognitoidentityprovider.InitiateAuthInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error) {
	f.initiateIn = in
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return &cognitoidentityprovider.InitiateAuthOutput{AuthenticationResult: f.authResult}, nil
}

func (f *fakeCognito) ConfirmSignUp(_ context.Context, in *cognitoidentityprovider.ConfirmSignUpInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error) {
	f.confirmIn = in
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &cognitoidentityprovider.ConfirmSignUpOutput{}, nil
}

func TestClient_SecretHash(t *testing.T) {
	client := NewClientWithAPI(&fakeCognito{}, "client-id", "client-secret")

	// HMAC-SHA256("client-secret", "aliceclient-id"), base64.
	assert.Equal(t, "qROqM+PMKX09MK8ulDVm8LCWdCRqQQEUG9HcF+N7/S4=", client.secretHash("alice"))
}

func TestClient_SignUpSendsAttributes(t *testing.T) {
	fake := &fakeCognito{}
	client := NewClientWithAPI(fake, "client-id", "client-secret")

	err := client.SignUp(context.Background(), "alice", "Passw0rd!", "alice@example.com", "Alice")
	require.NoError(t, err)

	require.NotNil(t, fake.signUpIn)
	assert.Equal(t, "alice", aws.ToString(fake.signUpIn.Username))
	assert.Equal(t, "client-id", aws.ToString(fake.signUpIn.ClientId))
	assert.NotEmpty(t, aws.ToString(fake.signUpIn.SecretHash))

	attrs := map[string]string{}
	for _, a := range fake.signUpIn.UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	assert.Equal(t, "alice@example.com", attrs["email"])
	assert.Equal(t, "alice", attrs["preferred_username"])
	assert.Equal(t, "Alice", attrs["name"])
}

func TestClient_SignUpMapsUsernameExists(t *testing.T) {
	fake := &fakeCognito{signUpErr: &types.UsernameExistsException{}}
	client := NewClientWithAPI(fake, "client-id", "client-secret")

	err := client.SignUp(context.Background(), "alice", "Passw0rd!", "alice@example.com", "Alice")
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestClient_LoginReturnsTokenSet(t *testing.T) {
	fake := &fakeCognito{authResult: &types.AuthenticationResultType{
		IdToken:      aws.String("id-token"),
		AccessToken:  aws.String("access-token"),
		RefreshToken: aws.String("refresh-token"),
		ExpiresIn:    3600,
	}}
	client := NewClientWithAPI(fake, "client-id", "client-secret")

	tokens, err := client.Login(context.Background(), "alice", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, "id-token", tokens.IDToken)
	assert.Equal(t, "access-token", tokens.AccessToken)
	assert.Equal(t, "refresh-token", tokens.RefreshToken)
	assert.Equal(t, int32(3600), tokens.ExpiresIn)

	require.NotNil(t, fake.initiateIn)
	assert.Equal(t, types.AuthFlowTypeUserPasswordAuth, fake.initiateIn.AuthFlow)
	assert.Equal(t, "alice", fake.initiateIn.AuthParameters["USERNAME"])
	assert.NotEmpty(t, fake.initiateIn.AuthParameters["SECRET_HASH"])
}

func TestClient_LoginMapsNotAuthorized(t *testing.T) {
	fake := &fakeCognito{initiateErr: &types.NotAuthorizedException{}}
	client := NewClientWithAPI(fake, "client-id", "client-secret")

	_, err := client.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestClient_ConfirmMapsCodeMismatch(t *testing.T) {
	fake := &fakeCognito{confirmErr: &types.CodeMismatchException{}}
	client := NewClientWithAPI(fake, "client-id", "client-secret")

	err := client.Confirm(context.Background(), "alice", "123456")
	assert.ErrorIs(t, err, ErrCodeMismatch)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello", SanitizeInput("  hello  "))
	assert.Equal(t, "scriptalert(1)/script", SanitizeInput("<script>alert(1)</script>"))
	assert.Equal(t, "", SanitizeInput("   "))
}

func TestValidateUsername(t *testing.T) {
	assert.Empty(t, ValidateUsername("alice_01"))
	assert.NotEmpty(t, ValidateUsername(""))
	assert.NotEmpty(t, ValidateUsername("ab"))
	assert.NotEmpty(t, ValidateUsername("has space"))
	assert.NotEmpty(t, ValidateUsername(strings51()))
}

func strings51() string {
	s := make([]byte, 51)
	for i := range s {
		s[i] = 'a'
	}
	return string(s)
}

func TestValidateEmail(t *testing.T) {
	assert.Empty(t, ValidateEmail("alice@example.com"))
	assert.NotEmpty(t, ValidateEmail(""))
	assert.NotEmpty(t, ValidateEmail("not-an-email"))
	assert.NotEmpty(t, ValidateEmail("a@b"))
}

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, ValidatePassword("Passw0rd!"))
	assert.NotEmpty(t, ValidatePassword(""))
	assert.NotEmpty(t, ValidatePassword("short1!"))
	assert.NotEmpty(t, ValidatePassword("alllower1!"))
	assert.NotEmpty(t, ValidatePassword("ALLUPPER1!"))
	assert.NotEmpty(t, ValidatePassword("NoDigits!"))
	assert.NotEmpty(t, ValidatePassword("NoSpecial1"))
}
