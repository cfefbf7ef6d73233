// Package client implements the app side of the storage protocol.
//
// A Repository is provisioned once with NewRepository. An app holding
// its own key pair registers with Register and then opens named
// storages. Every thing travels encrypted for its recipient and signed
// by its sender, so the transport only ever sees sealed payloads.
//
//	repo, _ := client.NewRepository(ctx, conn, "owner")
//	app, _ := client.Register(ctx, conn, repo, keys)
//	notes, _ := app.Open(ctx, "notes")
//	_ = notes.Store(ctx, "todo", time.Now(), []byte("buy milk"))
package client
