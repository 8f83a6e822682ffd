// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

/*
Package cmd contains all the mnistload subcommand definitions (1 per file).

Each command file has a new*Command function which returns a cobra.Command
wrapping the ctl command that does the work, as well as a global exported
instance of that ctl command.

The instance of the command is global and exported so that it can be tested.
*/
package cmd
