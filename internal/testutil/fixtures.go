package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// OrdersManifest is a manifest with two sources and two lineage edges.
const OrdersManifest = `project:
  key: ORD
  name: Orders
  owner: data-eng
  status: active
  domain: sales
  tags: [orders]
data_assets:
  sources:
    - name: raw.orders
      system: postgres
      type: table
      url: postgres://db/orders
lineage:
  edges:
    - from: raw.orders
      to: staging.orders
      tool: dbt
      frequency: daily
    - from: staging.orders
      to: marts.revenue
      tool: dbt
stack:
  dbt:
    used: true
    project: orders
`

// BillingManifest shares staging.orders with OrdersManifest.
const BillingManifest = `project:
  key: BIL
  name: Billing
data_assets:
  sources:
    - name: stripe.charges
      system: stripe
      type: api
lineage:
  edges:
    - from: stripe.charges
      to: staging.orders
      tool: airbyte
`

// WriteFiles writes files relative to root, creating parent directories.
func WriteFiles(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

// SetupRepos creates a temporary project with a repos directory holding the
// orders and billing manifests. It returns the project root.
func SetupRepos(t testing.TB) string {
	t.Helper()
	root := t.TempDir()
	WriteFiles(t, root, map[string]string{
		"repos/orders/project.yaml":  OrdersManifest,
		"repos/billing/project.yaml": BillingManifest,
	})
	return root
}
