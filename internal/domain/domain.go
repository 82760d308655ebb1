// Package domain holds the retro board entities and the error taxonomy shared
// by the store adapters, the mutation services and the transport layer.
//
// A Retro is the root aggregate: lanes, cards and participants are only ever
// changed by reading the whole Retro, mutating a copy and writing it back.
package domain
