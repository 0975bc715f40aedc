// Package commands implements the audiochat command line.
//
//	audiochat serve                       run the client and its local API
//	audiochat contact add NICK IP PORT    add a contact (secret read from --secret)
//	audiochat contact list                list contacts
//	audiochat contact remove NICK         remove a contact
//	audiochat secret                      print a fresh shared secret
//	audiochat config show                 print the effective configuration
//
// Every command reads config.yml from --home, creating it with defaults on
// first use.
package commands
