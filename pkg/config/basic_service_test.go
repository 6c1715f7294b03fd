package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicService_GetAddresses(t *testing.T) {
	for name, tc := range map[string]struct {
		svc      BasicService
		expected []string
	}{
		"empty":      {BasicService{}, []string{}},
		"single":     {BasicService{Addresses: []string{":3001"}}, []string{":3001"}},
		"duplicates": {BasicService{Addresses: []string{":3001", "localhost:3002", ":3001"}}, []string{":3001", "localhost:3002"}},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.svc.GetAddresses())
		})
	}
}
