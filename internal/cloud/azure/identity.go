package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v3"
	"github.com/google/uuid"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	graphapplications "github.com/microsoftgraph/msgraph-sdk-go/applications"
	graphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"
	graphserviceprincipals "github.com/microsoftgraph/msgraph-sdk-go/serviceprincipals"

	"github.com/xpertslabs/docstrap/internal/cloud/naming"
	"github.com/xpertslabs/docstrap/internal/models"
)

// Role names granted to the automation identity at subscription scope.
const (
	roleContributor      = "Contributor"
	roleUserAccessAdmin  = "User Access Administrator"
	graphDefaultScope    = "https://graph.microsoft.com/.default"
	roleAssignmentExists = "RoleAssignmentExists"
)

// ServiceIdentity carries the credentials of the automation service
// principal. The client secret is sensitive: it is pushed to the secret store
// and never printed.
type ServiceIdentity struct {
	ClientID       string
	ClientSecret   string
	TenantID       string
	SubscriptionID string
	objectID       string // service principal object id, used for role grants
}

// AzureCredentialsJSON renders the identity in the sdk-auth shape consumed by
// the azure/login CI action.
func (s *ServiceIdentity) AzureCredentialsJSON() (string, error) {
	payload := map[string]string{
		"clientId":       s.ClientID,
		"clientSecret":   s.ClientSecret,
		"tenantId":       s.TenantID,
		"subscriptionId": s.SubscriptionID,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EnsureServiceIdentity creates, or reuses, the AAD application and service
// principal named after the project, issues a fresh client secret, and
// guarantees Contributor and User Access Administrator role assignments at
// subscription scope. An existing application is resolved by a deterministic
// display-name lookup, never by matching "already exists" error text.
func EnsureServiceIdentity(ctx context.Context, sess *Session, project string) (*ServiceIdentity, error) {
	name := naming.ServicePrincipalName(project)

	graph, err := msgraphsdk.NewGraphServiceClientWithCredentials(sess.Cred, []string{graphDefaultScope})
	if err != nil {
		return nil, &models.ProvisionError{Operation: "service-principal", Resource: name, Cause: err}
	}

	appObjectID, clientID, err := ensureApplication(ctx, graph, name)
	if err != nil {
		return nil, err
	}
	spObjectID, err := ensureServicePrincipal(ctx, graph, name, clientID)
	if err != nil {
		return nil, err
	}
	secret, err := issueClientSecret(ctx, graph, name, appObjectID)
	if err != nil {
		return nil, err
	}

	identity := &ServiceIdentity{
		ClientID:       clientID,
		ClientSecret:   secret,
		TenantID:       sess.TenantID,
		SubscriptionID: sess.SubscriptionID,
		objectID:       spObjectID,
	}

	for _, role := range []string{roleContributor, roleUserAccessAdmin} {
		if err := ensureRoleAssignment(ctx, sess, identity.objectID, role); err != nil {
			return nil, err
		}
	}
	return identity, nil
}

// ensureApplication finds the application by display name or creates it.
// Returns the directory object id and the app (client) id.
func ensureApplication(ctx context.Context, graph *msgraphsdk.GraphServiceClient, name string) (string, string, error) {
	filter := fmt.Sprintf("displayName eq '%s'", name)
	resp, err := graph.Applications().Get(ctx, &graphapplications.ApplicationsRequestBuilderGetRequestConfiguration{
		QueryParameters: &graphapplications.ApplicationsRequestBuilderGetQueryParameters{Filter: &filter},
	})
	if err != nil {
		return "", "", &models.ProvisionError{Operation: "service-principal", Resource: name, Cause: err}
	}
	if apps := resp.GetValue(); len(apps) > 0 {
		app := apps[0]
		if app.GetAppId() == nil || app.GetId() == nil {
			return "", "", &models.ProvisionError{Operation: "service-principal", Resource: name,
				Cause: fmt.Errorf("existing application has no usable client id")}
		}
		fmt.Printf("✅ Application '%s' already exists\n", name)
		return *app.GetId(), *app.GetAppId(), nil
	}

	app := graphmodels.NewApplication()
	app.SetDisplayName(to.Ptr(name))
	created, err := graph.Applications().Post(ctx, app, nil)
	if err != nil {
		return "", "", &models.ProvisionError{Operation: "service-principal", Resource: name, Cause: err}
	}
	if created.GetAppId() == nil || created.GetId() == nil {
		return "", "", &models.ProvisionError{Operation: "service-principal", Resource: name,
			Cause: fmt.Errorf("created application has no usable client id")}
	}
	fmt.Printf("✅ Created application '%s'\n", name)
	return *created.GetId(), *created.GetAppId(), nil
}

// ensureServicePrincipal finds the service principal for the app id or
// creates it. Returns the principal's object id.
func ensureServicePrincipal(ctx context.Context, graph *msgraphsdk.GraphServiceClient, name, clientID string) (string, error) {
	filter := fmt.Sprintf("appId eq '%s'", clientID)
	resp, err := graph.ServicePrincipals().Get(ctx, &graphserviceprincipals.ServicePrincipalsRequestBuilderGetRequestConfiguration{
		QueryParameters: &graphserviceprincipals.ServicePrincipalsRequestBuilderGetQueryParameters{Filter: &filter},
	})
	if err != nil {
		return "", &models.ProvisionError{Operation: "service-principal", Resource: name, Cause: err}
	}
	if sps := resp.GetValue(); len(sps) > 0 {
		if sps[0].GetId() == nil {
			return "", &models.ProvisionError{Operation: "service-principal", Resource: name,
				Cause: fmt.Errorf("existing service principal has no object id")}
		}
		return *sps[0].GetId(), nil
	}

	sp := graphmodels.NewServicePrincipal()
	sp.SetAppId(to.Ptr(clientID))
	created, err := graph.ServicePrincipals().Post(ctx, sp, nil)
	if err != nil {
		return "", &models.ProvisionError{Operation: "service-principal", Resource: name, Cause: err}
	}
	if created.GetId() == nil {
		return "", &models.ProvisionError{Operation: "service-principal", Resource: name,
			Cause: fmt.Errorf("created service principal has no object id")}
	}
	fmt.Printf("✅ Created service principal for '%s'\n", name)
	return *created.GetId(), nil
}

// issueClientSecret adds a fresh password credential to the application.
// Secrets cannot be read back, so each run issues a new one; downstream
// secret-sets overwrite, keeping the run idempotent from the consumer's view.
func issueClientSecret(ctx context.Context, graph *msgraphsdk.GraphServiceClient, name, appObjectID string) (string, error) {
	cred := graphmodels.NewPasswordCredential()
	cred.SetDisplayName(to.Ptr("docstrap"))
	body := graphapplications.NewItemAddPasswordPostRequestBody()
	body.SetPasswordCredential(cred)

	result, err := graph.Applications().ByApplicationId(appObjectID).AddPassword().Post(ctx, body, nil)
	if err != nil {
		return "", &models.ProvisionError{Operation: "service-principal", Resource: name, Cause: err}
	}
	if result.GetSecretText() == nil || *result.GetSecretText() == "" {
		return "", &models.ProvisionError{Operation: "service-principal", Resource: name,
			Cause: fmt.Errorf("no secret text returned for new credential")}
	}
	return *result.GetSecretText(), nil
}

// ensureRoleAssignment grants roleName to the principal at subscription scope
// with a list-then-create pattern so re-runs never duplicate grants.
func ensureRoleAssignment(ctx context.Context, sess *Session, principalID, roleName string) error {
	scope := "/subscriptions/" + sess.SubscriptionID

	defClient, err := armauthorization.NewRoleDefinitionsClient(sess.Cred, nil)
	if err != nil {
		return &models.ProvisionError{Operation: "role-assignment", Resource: roleName, Cause: err}
	}
	roleDefID, err := findRoleDefinition(ctx, defClient, scope, roleName)
	if err != nil {
		return err
	}

	asgClient, err := armauthorization.NewRoleAssignmentsClient(sess.SubscriptionID, sess.Cred, nil)
	if err != nil {
		return &models.ProvisionError{Operation: "role-assignment", Resource: roleName, Cause: err}
	}

	filter := fmt.Sprintf("principalId eq '%s'", principalID)
	pager := asgClient.NewListForScopePager(scope, &armauthorization.RoleAssignmentsClientListForScopeOptions{Filter: &filter})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return &models.ProvisionError{Operation: "role-assignment", Resource: roleName, Cause: err}
		}
		for _, a := range page.Value {
			if a.Properties != nil && deref(a.Properties.RoleDefinitionID) == roleDefID {
				fmt.Printf("✅ Role '%s' already assigned\n", roleName)
				return nil
			}
		}
	}

	_, err = asgClient.Create(ctx, scope, uuid.NewString(), armauthorization.RoleAssignmentCreateParameters{
		Properties: &armauthorization.RoleAssignmentProperties{
			PrincipalID:      to.Ptr(principalID),
			RoleDefinitionID: to.Ptr(roleDefID),
			PrincipalType:    to.Ptr(armauthorization.PrincipalTypeServicePrincipal),
		},
	}, nil)
	if err != nil {
		// A concurrent or racing re-run can still hit the conflict; the grant
		// exists, which is all this step guarantees.
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == roleAssignmentExists {
			fmt.Printf("✅ Role '%s' already assigned\n", roleName)
			return nil
		}
		return &models.ProvisionError{Operation: "role-assignment", Resource: roleName, Cause: err}
	}
	fmt.Printf("✅ Assigned role '%s' at subscription scope\n", roleName)
	return nil
}

func findRoleDefinition(ctx context.Context, client *armauthorization.RoleDefinitionsClient, scope, roleName string) (string, error) {
	filter := fmt.Sprintf("roleName eq '%s'", roleName)
	pager := client.NewListPager(scope, &armauthorization.RoleDefinitionsClientListOptions{Filter: &filter})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", &models.ProvisionError{Operation: "role-assignment", Resource: roleName, Cause: err}
		}
		for _, d := range page.Value {
			if d.ID != nil {
				return *d.ID, nil
			}
		}
	}
	return "", &models.ProvisionError{Operation: "role-assignment", Resource: roleName,
		Cause: fmt.Errorf("role definition not found at scope %s", scope)}
}
