// Package federation holds the ActivityPub-style wire format exchanged between pods:
// activities, actor documents, object IRIs and the HTTP signature scheme used on inbox
// deliveries.
package federation
