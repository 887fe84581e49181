package main

import (
	"fmt"

	"github.com/Sternrassler/kaltura-client/pkg/client"
	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/spf13/cobra"
)

// mediaFlags are the entry metadata flags shared by upload and upload-url.
type mediaFlags struct {
	ref         string
	mediaType   string
	title       string
	description string
	tag         string
	flavor      int
}

func (m *mediaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.ref, "ref", "", "referenceId of the new entry (required)")
	cmd.Flags().StringVar(&m.mediaType, "type", "", "Media type: video or audio (required)")
	cmd.Flags().StringVar(&m.title, "title", "", "Entry title; defaults to the referenceId")
	cmd.Flags().StringVar(&m.description, "description", "", "Entry description")
	cmd.Flags().StringVar(&m.tag, "tag", "", "Entry tag")
	cmd.Flags().IntVar(&m.flavor, "flavor", 0, "Flavor param id the content is stored as")
	_ = cmd.MarkFlagRequired("ref")
	_ = cmd.MarkFlagRequired("type")
}

func (m *mediaFlags) spec(cmd *cobra.Command) (client.MediaSpec, error) {
	mediaType, err := kaltura.ParseMediaType(m.mediaType)
	if err != nil {
		return client.MediaSpec{}, err
	}
	spec := client.MediaSpec{
		ReferenceID: m.ref,
		MediaType:   mediaType,
		Title:       m.title,
		Description: m.description,
		Tag:         m.tag,
	}
	if cmd.Flags().Changed("flavor") {
		flavor := m.flavor
		spec.FlavorParamID = &flavor
	}
	return spec, nil
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	var (
		media mediaFlags
		file  string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a local mp4 or mp3 file as a new entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := media.spec(cmd)
			if err != nil {
				return err
			}
			if err := client.CheckExtension(file, spec.MediaType); err != nil {
				return err
			}

			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			id, err := c.Upload(cmd.Context(), client.UploadRequest{MediaSpec: spec, Path: file})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", spec.ReferenceID, id)
			return nil
		},
	}

	media.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "File to upload (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUploadURLCmd(opts *rootOptions) *cobra.Command {
	var (
		media mediaFlags
		url   string
	)

	cmd := &cobra.Command{
		Use:   "upload-url",
		Short: "Create an entry whose content the service fetches from a URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := media.spec(cmd)
			if err != nil {
				return err
			}

			c, release, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			id, err := c.UploadURL(cmd.Context(), client.URLUploadRequest{MediaSpec: spec, URL: url})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", spec.ReferenceID, id)
			return nil
		},
	}

	media.register(cmd)
	cmd.Flags().StringVar(&url, "url", "", "Content URL (required)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
