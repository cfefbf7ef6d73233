// Package confloader loads thingvault configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Values already present in the target struct (defaults)
//  2. A YAML configuration file
//  3. Environment variables carrying the THINGVAULT_ prefix
//
// Environment names are matched against the koanf keys of the target, so
// THINGVAULT_MANAGER_ENTITY_TTL resolves to manager.entity_ttl rather than
// manager.entity.ttl.
//
// Watcher reloads the file through fsnotify when it changes on disk.
package confloader
