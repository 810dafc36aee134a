// Package port checks and reserves the host ports published by sync
// containers.
//
// An rsync sync point declares its sync_host_port explicitly; starting
// its container fails early with a clear error when another process (or
// another sync point of the same configuration) already holds that port.
// Sync points without a declared port get one from the IANA dynamic range
// (49152-65535), skipping ports reserved by earlier sync points.
package port
