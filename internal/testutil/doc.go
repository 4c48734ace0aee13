// Package testutil provides the integration-test harness for Quill.
//
// Philosophy:
// - Drive the real application (SQLite, router, console), never mocks of it.
// - Keep helpers small, composable, and deterministic.
// - Register cleanup via t.Cleanup so tests stay leak-free.
//
// Every test gets its own app root, database and super admin:
//
//	h := testutil.NewHarness(t, testutil.WithPreset("blog"))
//	h.Login()
//	h.Request("/quill/posts")
//	h.AssertSee("Blog posts")
package testutil
