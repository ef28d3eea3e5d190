// Package azure drives the Azure control plane for bootstrap: session
// establishment, Terraform-state storage provisioning, and the automation
// service principal with its role grants. Sessions are explicit values
// threaded into every call, never ambient CLI state.
package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/xpertslabs/docstrap/internal/models"
	"github.com/xpertslabs/docstrap/internal/prompts"
)

// Session is an authenticated Azure session pinned to one subscription.
type Session struct {
	SubscriptionID string
	TenantID       string
	Cred           azcore.TokenCredential
}

// EnsureSession guarantees an authenticated Azure session. It first probes the
// ambient credential chain (environment, managed identity, az CLI) with a
// subscription listing; when that fails it falls back to an interactive
// device-code login. The subscription is confirmed or selected interactively.
func EnsureSession(ctx context.Context) (*Session, error) {
	if cred, err := azidentity.NewDefaultAzureCredential(nil); err == nil {
		if subs, perr := listSubscriptions(ctx, cred); perr == nil && len(subs) > 0 {
			fmt.Println("🔍 Detected valid Azure credentials, reusing existing session...")
			return selectSubscription(subs, cred)
		}
	}

	fmt.Println("🔐 No valid Azure session found, starting device code login...")
	cred, err := azidentity.NewDeviceCodeCredential(&azidentity.DeviceCodeCredentialOptions{
		UserPrompt: func(ctx context.Context, dc azidentity.DeviceCodeMessage) error {
			fmt.Println(dc.Message)
			return nil
		},
	})
	if err != nil {
		return nil, &models.AuthError{System: "azure", Operation: "login", Cause: err}
	}

	subs, err := listSubscriptions(ctx, cred)
	if err != nil {
		return nil, &models.AuthError{System: "azure", Operation: "login", Cause: err}
	}
	if len(subs) == 0 {
		return nil, &models.AuthError{System: "azure", Operation: "login",
			Cause: fmt.Errorf("login succeeded but no subscriptions are visible")}
	}
	return selectSubscription(subs, cred)
}

func listSubscriptions(ctx context.Context, cred azcore.TokenCredential) ([]*armsubscriptions.Subscription, error) {
	client, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, err
	}
	var subs []*armsubscriptions.Subscription
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		subs = append(subs, page.Value...)
	}
	return subs, nil
}

// selectSubscription proposes the first visible subscription; when the
// operator declines, it lists every subscription and requires selection by
// exact display-name match.
func selectSubscription(subs []*armsubscriptions.Subscription, cred azcore.TokenCredential) (*Session, error) {
	proposed := subs[0]
	msg := fmt.Sprintf("Use subscription '%s' (%s)?", deref(proposed.DisplayName), deref(proposed.SubscriptionID))
	if prompts.Confirm(msg, true) {
		return sessionFor(proposed, cred)
	}

	fmt.Println("📋 Visible subscriptions:")
	for _, s := range subs {
		fmt.Printf("   • %s (%s)\n", deref(s.DisplayName), deref(s.SubscriptionID))
	}
	name := prompts.Input("Subscription name (exact match):", "")

	var matches []*armsubscriptions.Subscription
	for _, s := range subs {
		if deref(s.DisplayName) == name {
			matches = append(matches, s)
		}
	}
	if len(matches) != 1 {
		return nil, &models.AuthError{System: "azure", Operation: "select-subscription",
			Cause: fmt.Errorf("name '%s' matched %d subscriptions, need exactly one", name, len(matches))}
	}
	return sessionFor(matches[0], cred)
}

func sessionFor(sub *armsubscriptions.Subscription, cred azcore.TokenCredential) (*Session, error) {
	if deref(sub.SubscriptionID) == "" {
		return nil, &models.AuthError{System: "azure", Operation: "select-subscription",
			Cause: fmt.Errorf("subscription has no id")}
	}
	return &Session{
		SubscriptionID: deref(sub.SubscriptionID),
		TenantID:       deref(sub.TenantID),
		Cred:           cred,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
