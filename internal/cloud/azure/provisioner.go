package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/xpertslabs/docstrap/internal/cloud/naming"
	"github.com/xpertslabs/docstrap/internal/models"
)

// StateStorage names the provisioned Terraform remote-state resources.
type StateStorage struct {
	ResourceGroup  string
	StorageAccount string
	Container      string
	Location       string
}

// EnsureStateStorage idempotently provisions, in order, the resource group,
// the storage account and the blob container that hold remote Terraform
// state. Every step is existence-checked before creation; creation failures
// are fatal. Re-runs against existing resources create nothing.
func EnsureStateStorage(ctx context.Context, sess *Session, project, location string) (*StateStorage, error) {
	st := &StateStorage{
		ResourceGroup:  naming.ResourceGroupName(project),
		StorageAccount: naming.StorageAccountName(project),
		Container:      naming.ContainerName(project),
		Location:       location,
	}

	if err := ensureResourceGroup(ctx, sess, st.ResourceGroup, location); err != nil {
		return nil, err
	}
	if err := ensureStorageAccount(ctx, sess, st); err != nil {
		return nil, err
	}
	if err := ensureContainer(ctx, sess, st); err != nil {
		return nil, err
	}
	return st, nil
}

func ensureResourceGroup(ctx context.Context, sess *Session, name, location string) error {
	client, err := armresources.NewResourceGroupsClient(sess.SubscriptionID, sess.Cred, nil)
	if err != nil {
		return &models.ProvisionError{Operation: "resource-group", Resource: name, Cause: err}
	}

	exists, err := client.CheckExistence(ctx, name, nil)
	if err == nil && exists.Success {
		fmt.Printf("✅ Resource group '%s' already exists\n", name)
		return nil
	}

	_, err = client.CreateOrUpdate(ctx, name, armresources.ResourceGroup{
		Location: to.Ptr(location),
	}, nil)
	if err != nil {
		return &models.ProvisionError{Operation: "resource-group", Resource: name, Cause: err}
	}
	fmt.Printf("✅ Created resource group '%s' in %s\n", name, location)
	return nil
}

func ensureStorageAccount(ctx context.Context, sess *Session, st *StateStorage) error {
	client, err := armstorage.NewAccountsClient(sess.SubscriptionID, sess.Cred, nil)
	if err != nil {
		return &models.ProvisionError{Operation: "storage-account", Resource: st.StorageAccount, Cause: err}
	}

	if _, err := client.GetProperties(ctx, st.ResourceGroup, st.StorageAccount, nil); err == nil {
		fmt.Printf("✅ Storage account '%s' already exists\n", st.StorageAccount)
		return nil
	} else if !isNotFound(err) {
		return &models.ProvisionError{Operation: "storage-account", Resource: st.StorageAccount, Cause: err}
	}

	// Absent in our group; make sure the global name is actually free before
	// starting the long-running create.
	avail, err := client.CheckNameAvailability(ctx, armstorage.AccountCheckNameAvailabilityParameters{
		Name: to.Ptr(st.StorageAccount),
		Type: to.Ptr("Microsoft.Storage/storageAccounts"),
	}, nil)
	if err != nil {
		return &models.ProvisionError{Operation: "storage-account", Resource: st.StorageAccount, Cause: err}
	}
	if avail.NameAvailable != nil && !*avail.NameAvailable {
		return &models.ProvisionError{Operation: "storage-account", Resource: st.StorageAccount,
			Cause: fmt.Errorf("name taken globally: %s", deref(avail.Message))}
	}

	loader := models.NewLoader(os.Stdout, fmt.Sprintf("Creating storage account '%s'...", st.StorageAccount))
	loader.Start()
	poller, err := client.BeginCreate(ctx, st.ResourceGroup, st.StorageAccount, armstorage.AccountCreateParameters{
		Location: to.Ptr(st.Location),
		Kind:     to.Ptr(armstorage.KindStorageV2),
		SKU:      &armstorage.SKU{Name: to.Ptr(armstorage.SKUNameStandardLRS)},
		Properties: &armstorage.AccountPropertiesCreateParameters{
			AllowBlobPublicAccess: to.Ptr(false),
			MinimumTLSVersion:     to.Ptr(armstorage.MinimumTLSVersionTLS12),
		},
	}, nil)
	if err == nil {
		_, err = poller.PollUntilDone(ctx, nil)
	}
	if err != nil {
		loader.StopWithMessage("")
		return &models.ProvisionError{Operation: "storage-account", Resource: st.StorageAccount, Cause: err}
	}
	loader.StopWithMessage(fmt.Sprintf("✅ Created storage account '%s'", st.StorageAccount))
	return nil
}

func ensureContainer(ctx context.Context, sess *Session, st *StateStorage) error {
	client, err := armstorage.NewBlobContainersClient(sess.SubscriptionID, sess.Cred, nil)
	if err != nil {
		return &models.ProvisionError{Operation: "container", Resource: st.Container, Cause: err}
	}

	if _, err := client.Get(ctx, st.ResourceGroup, st.StorageAccount, st.Container, nil); err == nil {
		fmt.Printf("✅ Blob container '%s' already exists\n", st.Container)
		return nil
	} else if !isNotFound(err) {
		return &models.ProvisionError{Operation: "container", Resource: st.Container, Cause: err}
	}

	_, err = client.Create(ctx, st.ResourceGroup, st.StorageAccount, st.Container, armstorage.BlobContainer{
		ContainerProperties: &armstorage.ContainerProperties{
			PublicAccess: to.Ptr(armstorage.PublicAccessNone),
		},
	}, nil)
	if err != nil {
		return &models.ProvisionError{Operation: "container", Resource: st.Container, Cause: err}
	}
	fmt.Printf("✅ Created blob container '%s'\n", st.Container)
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
