package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	table := Table{
		"echo":            Unrestricted,
		"execute_command": Owner,
		"release":         OwnerOrUser,
	}
	auth := NewAuthorizer("jsmith", table)

	testCases := []struct {
		description string
		cred        *Credential
		op          string
		denied      bool
	}{
		{description: "no credential is permissive", op: "execute_command"},
		{description: "anyone may echo", cred: &Credential{User: "probe"}, op: "echo"},
		{description: "owner may execute", cred: &Credential{User: "jsmith"}, op: "execute_command"},
		{description: "stranger may not execute", cred: &Credential{User: "mallory"}, op: "execute_command", denied: true},
		{description: "designated user may release", cred: &Credential{User: "rkim", DesignatedBy: []string{"jsmith"}}, op: "release"},
		{description: "undesignated user may not release", cred: &Credential{User: "rkim"}, op: "release", denied: true},
		{description: "undeclared op defaults to owner", cred: &Credential{User: "rkim"}, op: "chmod", denied: true},
	}

	for _, testCase := range testCases {
		ctx := context.Background()
		if testCase.cred != nil {
			ctx = WithCredential(ctx, testCase.cred)
		}
		err := auth.Authorize(ctx, testCase.op)
		if testCase.denied {
			assert.Error(t, err, testCase.description)
			var denied *DeniedError
			assert.ErrorAs(t, err, &denied, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
	}
}

func TestNilAuthorizer(t *testing.T) {
	var auth *Authorizer
	ctx := WithCredential(context.Background(), &Credential{User: "anyone"})
	assert.NoError(t, auth.Authorize(ctx, "execute_command"))
}
