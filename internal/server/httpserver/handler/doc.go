// Package handler serves the thingvault storage API.
//
// Every command lives under /api/storage/ and answers with the obfuscated
// OK/ERROR envelope as text/plain. Command failures are part of the
// envelope, so they still answer 200; non-2xx statuses are reserved for
// transport problems (oversized body, missing admin token).
//
//	GET    /api/storage/newclient
//	POST   /api/storage/registerapp/{repositoryId}
//	GET    /api/storage/open/{appToken},{storageId}
//	PUT    /api/storage/store/{storageToken},{thingId}
//	GET    /api/storage/exists/{storageToken},{thingId}
//	GET    /api/storage/getmodifiedon/{storageToken},{thingId}
//	GET    /api/storage/getacopy/{storageToken},{thingId}
//	DELETE /api/storage/discard/{storageToken},{thingId}
//	GET    /api/storage/findids/{storageToken},{pattern}
package handler
