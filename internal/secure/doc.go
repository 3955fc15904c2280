// Package secure holds values typed at an interactive prompt in memguard
// enclaves until they are sent to the server.
//
// A prompted parameter value is encrypted in memory as soon as it is read and
// only decrypted for the request that writes it:
//
//	v := secure.NewValue(input)
//	defer v.Destroy()
//
//	plain, err := v.Reveal()
//
// Call memguard.Purge from main before exiting to wipe any enclave keys.
package secure
