// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package nfcctl is a userspace client for the Linux kernel NFC subsystem.

It talks to the kernel on two planes:

  - The control plane is the "nfc" generic netlink family. A Channel lists
    devices, starts and stops polling, and receives targets-found events from
    the family's "events" multicast group.
  - The data plane is an AF_NFC raw socket connected to one target. A Session
    owns that socket and MifareTag speaks the block protocol of Mifare-family
    tags over it.

Basic Usage:

	ch, err := nfcctl.Open(nfcctl.WithLogger(nfcctl.LoggerFromEnv()))
	if err != nil {
	    log.Fatal(err)
	}
	defer ch.Close()

	devices, err := ch.Devices(4)
	if err != nil {
	    log.Fatal(err)
	}

	for _, dev := range devices {
	    if err := ch.StartPoll(dev.Index, nfcctl.MaskMifare); err != nil {
	        log.Fatal(err)
	    }
	}

	var found struct {
	    device uint32
	    target nfcctl.Target
	    ok     bool
	}
	err = ch.Wait(ctx, func(device uint32, target nfcctl.Target) nfcctl.Action {
	    if !target.Protocols.Has(nfcctl.ProtocolMifare) {
	        return nfcctl.Continue
	    }
	    found.device, found.target, found.ok = device, target, true
	    return nfcctl.Stop
	})

	session, err := ch.OpenTarget(found.device, found.target.Index, nfcctl.ProtocolMifare)
	if err != nil {
	    log.Fatal(err)
	}
	tag, err := session.Mifare()
	if err != nil {
	    log.Fatal(err)
	}

	buf := make([]byte, nfcctl.MifareMaxSize)
	n, err := tag.Read(buf)

Error Handling:

Errors match a category with errors.Is and carry a POSIX error code:

	if errors.Is(err, nfcctl.ErrResolveFamily) {
	    // the kernel has no NFC support loaded
	}
	if nfcctl.Errno(err) == unix.EBUSY {
	    // device busy
	}

Tag reads and writes that fail part way return the number of bytes
transferred and a nil error; an error is only returned when nothing was
transferred.

Thread Safety:

A Channel and its Session are meant to be used from a single goroutine.
Close may be called concurrently to abort a blocked Wait. To serve several
adapters at once, multiplex the descriptors returned by Channel.Fd and
Session.Fd.
*/
package nfcctl
