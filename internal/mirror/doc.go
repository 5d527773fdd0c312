// Package mirror serves a remote hierarchical store for todosync clients.
//
// The server exposes a JSON document tree and a blob store over HTTP, and
// streams a change event to every connected WebSocket client after each
// successful write.
//
// Endpoints:
//
//	GET    /v1/data/<path>       read the JSON value at path
//	PUT    /v1/data/<path>       replace the value at path
//	PATCH  /v1/data/<path>       merge the children of an object into path
//	DELETE /v1/data/<path>       remove path and everything below it
//	PUT    /v1/blobs/<path>      store the request body as a blob
//	GET    /v1/blobs/<path>      download a blob
//	GET    /v1/blobs/<path>/url  {"url": <download url>}
//	GET    /health               {"status": "ok", "clients": n}
//	GET    /ws                   change events as {"path", "action", "timestamp"}
//
// Example:
//
//	srv := mirror.NewServer(mirror.NewMemoryStore(), &mirror.Config{Port: 8089})
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop()
package mirror
