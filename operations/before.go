package operations

import (
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func requireFileExists(name string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		path := c.String(name)
		if path == "" {
			return nil
		}
		if !utility.FileExists(path) {
			return errors.Errorf("file '%s' specified by --%s does not exist", path, name)
		}
		return nil
	}
}

func requireBinary(c *cli.Context) error {
	if c.String(binaryFlagName) == "" && c.String(settingsFlagName) == "" {
		return errors.Errorf("must specify --%s or --%s", binaryFlagName, settingsFlagName)
	}
	return nil
}

func requirePositive(name string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		if c.Int(name) < 1 {
			return errors.Errorf("--%s must be at least 1", name)
		}
		return nil
	}
}

func mergeBeforeFuncs(ops ...cli.BeforeFunc) cli.BeforeFunc {
	return func(c *cli.Context) error {
		catcher := grip.NewBasicCatcher()

		for _, op := range ops {
			catcher.Add(op(c))
		}

		return catcher.Resolve()
	}
}
