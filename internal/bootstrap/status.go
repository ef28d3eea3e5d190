package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/xpertslabs/docstrap/internal/cloud/azure"
	"github.com/xpertslabs/docstrap/internal/cloud/naming"
	"github.com/xpertslabs/docstrap/internal/githost"
	"github.com/xpertslabs/docstrap/internal/models"
)

// Status prints a read-only existence report for the project's cloud
// resources and repositories. Nothing is created or modified.
func Status(ctx context.Context, manifestPath string) error {
	m, err := models.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	fmt.Printf("📊 Bootstrap status: %s\n", m.ProjectName)
	fmt.Println(strings.Repeat("=", 50))

	azSess, err := azure.EnsureSession(ctx)
	if err != nil {
		return err
	}
	reportAzure(ctx, azSess, m.ProjectName)

	ghSess, err := githost.EnsureSession(ctx, githost.TokenFromEnv())
	if err != nil {
		return err
	}
	reportRepositories(ctx, ghSess, m)
	return nil
}

func reportAzure(ctx context.Context, sess *azure.Session, project string) {
	rg := naming.ResourceGroupName(project)
	account := naming.StorageAccountName(project)

	if client, err := armresources.NewResourceGroupsClient(sess.SubscriptionID, sess.Cred, nil); err == nil {
		if resp, err := client.CheckExistence(ctx, rg, nil); err == nil && resp.Success {
			fmt.Printf("✅ Resource group:   %s\n", rg)
		} else {
			fmt.Printf("❌ Resource group:   %s (missing)\n", rg)
		}
	}
	if client, err := armstorage.NewAccountsClient(sess.SubscriptionID, sess.Cred, nil); err == nil {
		if _, err := client.GetProperties(ctx, rg, account, nil); err == nil {
			fmt.Printf("✅ Storage account:  %s\n", account)
		} else {
			fmt.Printf("❌ Storage account:  %s (missing)\n", account)
		}
	}
}

func reportRepositories(ctx context.Context, sess *githost.Session, m *models.Manifest) {
	for _, repo := range m.Repos {
		if _, _, err := sess.Client.Repositories.Get(ctx, sess.Owner, repo); err == nil {
			fmt.Printf("✅ Repository:       %s/%s\n", sess.Owner, repo)
		} else {
			fmt.Printf("❌ Repository:       %s/%s (missing)\n", sess.Owner, repo)
		}
	}
}
