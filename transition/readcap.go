// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package transition

import "github.com/provost-linux/provost/lib/capset"

// WithFileReadCap runs fn with CAP_DAC_READ_SEARCH raised in the
// effective set, dropping it again before returning. The execution
// front-end brackets its policy read with this so a root-owned
// 0600 policy file stays readable while the process otherwise runs
// with an empty effective set.
//
// A failed raise is not fatal: the process may be running without
// file capabilities (a root shell during development), in which case
// fn proceeds on ordinary DAC and any access failure surfaces as
// fn's own error. A failed drop after a successful raise is an
// error, since the process would keep read privilege it no longer
// needs.
func WithFileReadCap(fn func() error) error {
	var sys linuxSystem
	raised := sys.RaiseEffective(capset.DacReadSearch) == nil

	err := fn()

	if raised {
		if dropErr := sys.DropEffective(capset.DacReadSearch); dropErr != nil && err == nil {
			err = &Error{Step: "drop cap_dac_read_search", Err: dropErr}
		}
	}
	return err
}
