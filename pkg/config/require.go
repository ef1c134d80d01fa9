package config

import "log"

// Missing signer material is a misconfiguration: the service must refuse
// to start rather than serve unauthenticated traffic.

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}
