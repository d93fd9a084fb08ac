// Package common holds the configuration surface and logging shared by all
// relgate components.
//
// Configuration is carried in CoordinatorConfig, assembled once by the CLI
// layer and passed down by value. Validate rejects unusable values before
// any lock is touched. Logging is handed out per component via GetLogger
// with a level applied centrally through InitLoggers.
package common
